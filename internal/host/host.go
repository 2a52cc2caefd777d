package host

import (
	"context"
	"errors"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
)

var (
	// ErrNotFound is returned by adapters when the engine does not know the id
	ErrNotFound = errors.New("download not found")

	// ErrUserGesture is returned when the engine refuses to open a file without user interaction
	ErrUserGesture = errors.New("user gesture required")
)

// Query selects records from the engine. Zero values mean "any".
type Query struct {
	ID     int
	States []types.DownloadState
	Limit  int // 0 is unbounded
}

// DownloadOptions describes a download to start
type DownloadOptions struct {
	URL    string `json:"url"`
	SaveAs bool   `json:"saveAs,omitempty"`
}

// Downloads is the subset of the download engine the relay drives
type Downloads interface {
	Search(ctx context.Context, q Query) ([]types.DownloadItem, error)
	Pause(ctx context.Context, id int) error
	Resume(ctx context.Context, id int) error
	Cancel(ctx context.Context, id int) error
	Erase(ctx context.Context, id int) error
	Open(ctx context.Context, id int) error
	Show(ctx context.Context, id int) error
	Download(ctx context.Context, opts DownloadOptions) (int, error)

	// Subscribe streams events.DownloadCreatedMsg, events.DownloadUpdateMsg and
	// events.DownloadErasedMsg until ctx is cancelled. The channel is closed on exit.
	Subscribe(ctx context.Context) (<-chan any, error)
}

// Notification is a user-visible notification
type Notification struct {
	ID       string
	Title    string
	Message  string
	Buttons  []string
	Priority int // 0 normal, 1 elevated
}

// Notifier raises and clears notifications
type Notifier interface {
	Create(ctx context.Context, n Notification) error
	Clear(ctx context.Context, id string) error
}

// Badge renders a short status text with a background color
type Badge interface {
	SetText(ctx context.Context, text string) error
	SetColor(ctx context.Context, color string) error
}

// Matches reports whether item satisfies the query
func (q Query) Matches(item types.DownloadItem) bool {
	if q.ID != 0 && item.ID != q.ID {
		return false
	}
	if len(q.States) == 0 {
		return true
	}
	for _, s := range q.States {
		if item.State == s {
			return true
		}
	}
	return false
}
