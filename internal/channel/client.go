package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/events"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/relay"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	pushBuffer     = 100
)

// ErrRelayUnreachable wraps transport failures talking to the relay
var ErrRelayUnreachable = errors.New("relay unreachable")

// Client is the view side of the message channel
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Dialer  *websocket.Dialer
	Logger  *slog.Logger
}

// NewClient creates a client for the relay at baseURL
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		Dialer:  websocket.DefaultDialer,
		Logger:  logger,
	}
}

// call posts one envelope and decodes the answer into out.
// A response without success becomes an error carrying the relay's message.
func (c *Client) call(ctx context.Context, action string, payload any, out any) error {
	env := events.Envelope{Action: action}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		env.Payload = data
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/message", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}

	var base Response
	if err := json.Unmarshal(raw, &base); err != nil {
		return fmt.Errorf("relay returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	if !base.Success {
		if base.Error == "" {
			base.Error = fmt.Sprintf("relay returned %s", resp.Status)
		}
		return errors.New(base.Error)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s response: %w", action, err)
		}
	}
	return nil
}

// Health checks that a relay is listening at BaseURL
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %s", ErrRelayUnreachable, resp.Status)
	}
	return nil
}

// GetDownloads fetches the full snapshot
func (c *Client) GetDownloads(ctx context.Context) ([]types.DownloadItem, error) {
	var resp DownloadsResponse
	if err := c.call(ctx, ActionGetDownloads, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Downloads == nil {
		resp.Downloads = []types.DownloadItem{}
	}
	return resp.Downloads, nil
}

// PerformAction runs one action on one download
func (c *Client) PerformAction(ctx context.Context, id int, action types.Action) error {
	return c.call(ctx, ActionPerformDownloadAction, PerformActionRequest{DownloadID: id, Action: string(action)}, nil)
}

// PerformBatchAction runs one action on several downloads
func (c *Client) PerformBatchAction(ctx context.Context, ids []int, action types.Action) (types.BatchResult, error) {
	var resp BatchResponse
	if err := c.call(ctx, ActionPerformBatchAction, BatchActionRequest{DownloadIDs: ids, Action: string(action)}, &resp); err != nil {
		return types.BatchResult{}, err
	}
	if resp.Results == nil {
		return types.BatchResult{}, errors.New("relay returned no batch results")
	}
	return *resp.Results, nil
}

// PerformBulkAction runs a list-wide action
func (c *Client) PerformBulkAction(ctx context.Context, action types.BulkAction) error {
	return c.call(ctx, ActionPerformBulkAction, BulkActionRequest{Action: string(action)}, nil)
}

// DownloadURL asks the relay to start a download
func (c *Client) DownloadURL(ctx context.Context, rawURL string) (int, error) {
	var resp DownloadURLResponse
	if err := c.call(ctx, ActionDownloadURL, DownloadURLRequest{URL: rawURL}, &resp); err != nil {
		return 0, err
	}
	return resp.DownloadID, nil
}

// ContextMenu reports a context menu activation; the relay downloads its link or media target
func (c *Client) ContextMenu(ctx context.Context, click relay.ContextMenuClick) (int, error) {
	var resp DownloadURLResponse
	if err := c.call(ctx, ActionContextMenuClicked, click, &resp); err != nil {
		return 0, err
	}
	return resp.DownloadID, nil
}

// NotificationClicked reports a click on a relay notification
func (c *Client) NotificationClicked(ctx context.Context, notificationID string, button int) error {
	return c.call(ctx, ActionNotificationClicked, NotificationClickRequest{NotificationID: notificationID, ButtonIndex: button}, nil)
}

// GetSettings returns the relay's current settings
func (c *Client) GetSettings(ctx context.Context) (*config.Settings, error) {
	var resp SettingsResponse
	if err := c.call(ctx, ActionGetSettings, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Settings == nil {
		return config.DefaultSettings(), nil
	}
	return resp.Settings, nil
}

// UpdateSetting changes one persisted setting and returns the settings after the change
func (c *Client) UpdateSetting(ctx context.Context, key, value string) (*config.Settings, error) {
	var resp SettingsResponse
	if err := c.call(ctx, ActionUpdateSetting, UpdateSettingRequest{Key: key, Value: value}, &resp); err != nil {
		return nil, err
	}
	if resp.Settings == nil {
		return config.DefaultSettings(), nil
	}
	return resp.Settings, nil
}

// Subscribe connects to the push stream. The first connection is made synchronously.
// On disconnect the client reconnects with backoff and emits a refresh hint
// because pushes may have been missed. The channel is closed when ctx is done.
func (c *Client) Subscribe(ctx context.Context) (<-chan any, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan any, pushBuffer)
	go c.streamWithReconnect(ctx, conn, ch)
	return ch, nil
}

func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := c.wsURL()
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	conn, resp, err := c.Dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}
	return conn, nil
}

func (c *Client) streamWithReconnect(ctx context.Context, conn *websocket.Conn, ch chan any) {
	defer close(ch)
	backoff := initialBackoff

	for {
		c.readLoop(ctx, conn, ch)
		if ctx.Err() != nil {
			return
		}

		for {
			c.Logger.Debug("relay push stream lost", "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)

			var err error
			conn, err = c.dial(ctx)
			if err == nil {
				break
			}
		}

		backoff = initialBackoff
		select {
		case ch <- events.RefreshHint():
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, ch chan any) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer func() { _ = conn.Close() }()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := events.Decode(data)
		if err != nil {
			c.Logger.Debug("skipping push", "err", err)
			continue
		}
		select {
		case ch <- msg:
		case <-ctx.Done():
			return
		}
	}
}
