package surface

import (
	"context"
	"errors"
	"sync"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/events"
	"github.com/modcoretech/NG-Download-Manager/internal/host"
	"github.com/modcoretech/NG-Download-Manager/internal/relay"
)

// Badge keeps the relay's badge state and broadcasts every change to connected views
type Badge struct {
	pusher relay.Pusher

	mu    sync.Mutex
	text  string
	color string
}

var _ host.Badge = (*Badge)(nil)

// NewBadge creates a badge with blank text and the idle color
func NewBadge(pusher relay.Pusher) *Badge {
	return &Badge{pusher: pusher, color: relay.BadgeColorIdle}
}

func (b *Badge) SetText(ctx context.Context, text string) error {
	b.mu.Lock()
	changed := b.text != text
	b.text = text
	b.mu.Unlock()
	if !changed {
		return nil
	}
	return b.broadcast(ctx)
}

func (b *Badge) SetColor(ctx context.Context, color string) error {
	b.mu.Lock()
	changed := b.color != color
	b.color = color
	b.mu.Unlock()
	if !changed {
		return nil
	}
	return b.broadcast(ctx)
}

// Current returns the badge as last set
func (b *Badge) Current() events.BadgeUpdateMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	return events.BadgeUpdateMsg{Text: b.text, Color: b.color}
}

func (b *Badge) broadcast(ctx context.Context) error {
	if b.pusher == nil {
		return nil
	}
	err := b.pusher.Push(ctx, b.Current())
	if errors.Is(err, relay.ErrNoListeners) {
		return nil
	}
	return err
}
