package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/events"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/host"
)

const (
	// UIUpdateThrottle is the minimum gap between two non-critical pushes for one id
	UIUpdateThrottle = 500 * time.Millisecond

	// BadgeUpdateThrottle is the minimum gap between two badge recomputations
	BadgeUpdateThrottle = 1000 * time.Millisecond

	// ClearBatchSize is the number of erases issued concurrently by clearAllFinished
	ClearBatchSize = 50
)

// Badge colors
const (
	BadgeColorActive = "#1a73e8"
	BadgeColorIdle   = "#ffffff"
	BadgeColorError  = "#d93025"
)

// Notification id suffixes
const (
	notifyCompleteSuffix = "_complete"
	notifyFailSuffix     = "_fail"
)

// ErrNoListeners is returned by a Pusher when no view is connected
var ErrNoListeners = errors.New("no connected views")

// Pusher delivers fire-and-forget messages to connected views
type Pusher interface {
	Push(ctx context.Context, msg any) error
}

// Copier writes text to the system clipboard
type Copier interface {
	Copy(ctx context.Context, text string) error
}

// SettingsSource returns the current user settings
type SettingsSource interface {
	Load(ctx context.Context) (*config.Settings, error)
}

// Options wires the relay to its collaborators
type Options struct {
	Downloads host.Downloads
	Notifier  host.Notifier
	Badge     host.Badge
	Settings  SettingsSource
	Clipboard Copier
	Pusher    Pusher
	Logger    *slog.Logger
	Now       func() time.Time
}

// Relay translates engine events into view pushes, badge and notification updates,
// and executes commands sent by views.
type Relay struct {
	downloads host.Downloads
	notifier  host.Notifier
	badge     host.Badge
	settings  SettingsSource
	clipboard Copier
	pusher    Pusher
	logger    *slog.Logger
	now       func() time.Time

	mu              sync.Mutex
	lastUIUpdate    map[int]time.Time
	lastBadgeUpdate time.Time
}

// New creates a relay. Downloads is required; missing surfaces are skipped.
func New(opts Options) *Relay {
	r := &Relay{
		downloads:    opts.Downloads,
		notifier:     opts.Notifier,
		badge:        opts.Badge,
		settings:     opts.Settings,
		clipboard:    opts.Clipboard,
		pusher:       opts.Pusher,
		logger:       opts.Logger,
		now:          opts.Now,
		lastUIUpdate: make(map[int]time.Time),
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Run consumes engine events until ctx is cancelled or the stream ends.
// Events are handled one at a time in arrival order.
func (r *Relay) Run(ctx context.Context) error {
	stream, err := r.downloads.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to engine events: %w", err)
	}

	r.RefreshBadge(ctx, true)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-stream:
			if !ok {
				return ctx.Err()
			}
			r.HandleEvent(ctx, msg)
		}
	}
}

// HandleEvent dispatches one engine event
func (r *Relay) HandleEvent(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case events.DownloadCreatedMsg:
		r.HandleCreated(ctx, m.Item)
	case events.DownloadUpdateMsg:
		if m.IsRefreshHint() {
			r.RefreshBadge(ctx, true)
			r.push(ctx, events.RefreshHint())
			return
		}
		r.HandleChanged(ctx, m.Delta)
	case events.DownloadErasedMsg:
		r.HandleErased(ctx, m.ID)
	default:
		r.logger.Debug("ignoring engine event", "type", fmt.Sprintf("%T", msg))
	}
}

// HandleCreated refreshes the badge and pushes the new record to views
func (r *Relay) HandleCreated(ctx context.Context, item types.DownloadItem) {
	r.logger.Debug("download created", "id", item.ID, "url", item.URL)
	r.RefreshBadge(ctx, false)
	r.push(ctx, events.DownloadCreatedMsg{Item: item})
}

// HandleErased forgets throttle state, refreshes the badge and tells views
func (r *Relay) HandleErased(ctx context.Context, id int) {
	r.logger.Debug("download erased", "id", id)
	r.mu.Lock()
	delete(r.lastUIUpdate, id)
	r.mu.Unlock()

	r.RefreshBadge(ctx, false)
	r.push(ctx, events.DownloadErasedMsg{ID: id})
}

// HandleChanged applies the push throttle, badge refresh and terminal-state side effects
func (r *Relay) HandleChanged(ctx context.Context, delta *types.DownloadDelta) {
	if delta == nil {
		return
	}
	id := delta.ID

	if delta.IsCritical() {
		r.RefreshBadge(ctx, true)
	} else if delta.Paused != nil {
		r.RefreshBadge(ctx, false)
	}

	state, terminal := delta.NewState()
	terminal = terminal && state.IsTerminal()
	if terminal {
		r.handleTerminal(ctx, id, state)
	}

	if !delta.IsRelevant() {
		return
	}

	now := r.now()
	r.mu.Lock()
	last, seen := r.lastUIUpdate[id]
	shouldPush := delta.IsCritical() || !seen || now.Sub(last) >= UIUpdateThrottle
	if shouldPush {
		r.lastUIUpdate[id] = now
	}
	if terminal {
		// the next change after completion pushes immediately
		delete(r.lastUIUpdate, id)
	}
	r.mu.Unlock()

	if !shouldPush {
		r.logger.Debug("update throttled", "id", id)
		return
	}
	r.push(ctx, events.DownloadUpdateMsg{ID: id, Delta: delta})
}

// handleTerminal runs auto-open and notifications for a completed or failed download
func (r *Relay) handleTerminal(ctx context.Context, id int, state types.DownloadState) {
	items, err := r.downloads.Search(ctx, host.Query{ID: id})
	if err != nil || len(items) == 0 {
		r.logger.Warn("terminal download lookup failed", "id", id, "err", err)
		return
	}
	item := items[0]

	settings := config.DefaultSettings()
	if r.settings != nil {
		if s, err := r.settings.Load(ctx); err != nil {
			r.logger.Warn("loading settings failed, using defaults", "err", err)
		} else {
			settings = s
		}
	}

	name := item.BaseName()

	if state == types.StateComplete {
		if ext := item.Extension(); ext != "" && settings.AutoOpenSet()[ext] {
			if item.Exists {
				if err := r.downloads.Open(ctx, id); err != nil {
					r.logger.Warn("auto-open failed", "id", id, "err", err)
				}
			} else {
				r.logger.Warn("cannot auto-open, file does not exist", "id", id, "file", name)
			}
		}
		if settings.NotifyOnComplete {
			message := name
			if message == "" {
				message = "File download finished."
			}
			r.notify(ctx, host.Notification{
				ID:      strconv.Itoa(id) + notifyCompleteSuffix,
				Title:   "Download Complete",
				Message: message,
				Buttons: []string{"Show in folder"},
			})
		}
		return
	}

	if settings.NotifyOnFail {
		if name == "" {
			name = "File download"
		}
		reason := item.Error
		if reason == "" {
			reason = "Unknown"
		}
		r.notify(ctx, host.Notification{
			ID:       strconv.Itoa(id) + notifyFailSuffix,
			Title:    "Download Failed",
			Message:  fmt.Sprintf("Failed: %s (%s)", name, reason),
			Priority: 1,
		})
	}
}

func (r *Relay) notify(ctx context.Context, n host.Notification) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Create(ctx, n); err != nil {
		r.logger.Warn("notification failed", "id", n.ID, "err", err)
	}
}

// RefreshBadge recomputes the badge from the running download count.
// Unless forced it is a no-op within BadgeUpdateThrottle of the previous refresh.
func (r *Relay) RefreshBadge(ctx context.Context, force bool) {
	if r.badge == nil {
		return
	}

	now := r.now()
	r.mu.Lock()
	if !force && !r.lastBadgeUpdate.IsZero() && now.Sub(r.lastBadgeUpdate) < BadgeUpdateThrottle {
		r.mu.Unlock()
		return
	}
	r.lastBadgeUpdate = now
	r.mu.Unlock()

	items, err := r.downloads.Search(ctx, host.Query{States: []types.DownloadState{types.StateInProgress}})
	if err != nil {
		r.logger.Warn("badge refresh failed", "err", err)
		r.setBadge(ctx, "!", BadgeColorError)
		return
	}

	count := 0
	for i := range items {
		if items[i].IsRunning() {
			count++
		}
	}

	text, color := "", BadgeColorIdle
	if count > 0 {
		text, color = strconv.Itoa(count), BadgeColorActive
	}
	r.setBadge(ctx, text, color)
}

func (r *Relay) setBadge(ctx context.Context, text, color string) {
	if err := r.badge.SetText(ctx, text); err != nil {
		r.logger.Debug("set badge text failed", "err", err)
	}
	if err := r.badge.SetColor(ctx, color); err != nil {
		r.logger.Debug("set badge color failed", "err", err)
	}
}

// push delivers msg to views. Nobody listening is normal and only logged.
func (r *Relay) push(ctx context.Context, msg any) {
	if r.pusher == nil {
		return
	}
	if err := r.pusher.Push(ctx, msg); err != nil {
		if errors.Is(err, ErrNoListeners) {
			r.logger.Debug("push skipped, no views connected")
			return
		}
		r.logger.Warn("push failed", "err", err)
	}
}
