package surface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/events"
	"github.com/modcoretech/NG-Download-Manager/internal/host"
	"github.com/modcoretech/NG-Download-Manager/internal/relay"
)

// Embed colors used for webhook messages
const (
	webhookColorInfo  = 3447003
	webhookColorAlert = 15158332
)

// Notifier raises notifications on connected views and mirrors them to an optional webhook
type Notifier struct {
	pusher     relay.Pusher
	webhookURL string
	client     *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	active map[string]host.Notification
}

var _ host.Notifier = (*Notifier)(nil)

// NewNotifier creates a notifier. An empty webhookURL disables the webhook.
func NewNotifier(pusher relay.Pusher, webhookURL string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		pusher:     pusher,
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
		active: make(map[string]host.Notification),
	}
}

func (n *Notifier) Create(ctx context.Context, note host.Notification) error {
	n.mu.Lock()
	n.active[note.ID] = note
	n.mu.Unlock()

	var errs []error
	if n.pusher != nil {
		err := n.pusher.Push(ctx, events.NotificationMsg{
			ID:      note.ID,
			Title:   note.Title,
			Message: note.Message,
			Buttons: note.Buttons,
		})
		if err != nil && !errors.Is(err, relay.ErrNoListeners) {
			errs = append(errs, err)
		}
	}
	if err := n.sendWebhook(ctx, note); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (n *Notifier) Clear(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.active, id)
	return nil
}

// Active returns the ids of notifications that were raised and not cleared, sorted
func (n *Notifier) Active() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, 0, len(n.active))
	for id := range n.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (n *Notifier) sendWebhook(ctx context.Context, note host.Notification) error {
	if n.webhookURL == "" {
		return nil
	}

	color := webhookColorInfo
	if note.Priority > 0 {
		color = webhookColorAlert
	}

	payload := map[string]interface{}{
		"content": nil,
		"embeds": []map[string]interface{}{
			{
				"title":       note.Title,
				"description": note.Message,
				"color":       color,
				"footer": map[string]interface{}{
					"text": "ngdm " + note.ID,
				},
			},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Debug("webhook delivered", "id", note.ID)
	return nil
}
