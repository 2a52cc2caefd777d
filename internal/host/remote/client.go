package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vfaronov/httpheader"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/events"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/host"
)

// Client implements host.Downloads against a download engine's REST + SSE API.
type Client struct {
	BaseURL   string
	Token     string
	Client    *http.Client
	SSEClient *http.Client
	Logger    *slog.Logger
}

var _ host.Downloads = (*Client)(nil)

// NewClient creates a client for the engine at baseURL
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Token:     token,
		Client:    &http.Client{Timeout: types.RequestTimeout, Transport: types.NewEngineTransport(false)},
		SSEClient: &http.Client{Transport: types.NewEngineTransport(true)},
		Logger:    logger,
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		// Limit error body read to 1KB
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, apiError(resp.StatusCode, bodyBytes)
	}

	return resp, nil
}

// apiError maps an engine error response onto the host error vocabulary
func apiError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var decoded struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &decoded) == nil && decoded.Error != "" {
		msg = decoded.Error
	}

	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", host.ErrNotFound, msg)
	case status == http.StatusForbidden && strings.Contains(strings.ToLower(msg), "gesture"):
		return fmt.Errorf("%w: %s", host.ErrUserGesture, msg)
	default:
		return fmt.Errorf("engine error %d: %s", status, msg)
	}
}

func (c *Client) post(ctx context.Context, path string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

// Search lists records matching q
func (c *Client) Search(ctx context.Context, q host.Query) ([]types.DownloadItem, error) {
	params := url.Values{}
	if q.ID != 0 {
		params.Set("id", strconv.Itoa(q.ID))
	}
	for _, s := range q.States {
		params.Add("state", string(s))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	path := "/downloads"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var items []types.DownloadItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode downloads: %w", err)
	}
	return items, nil
}

// Pause pauses an active download.
func (c *Client) Pause(ctx context.Context, id int) error {
	return c.post(ctx, fmt.Sprintf("/downloads/%d/pause", id))
}

// Resume resumes a paused download.
func (c *Client) Resume(ctx context.Context, id int) error {
	return c.post(ctx, fmt.Sprintf("/downloads/%d/resume", id))
}

// Cancel stops a download, leaving an interrupted record behind.
func (c *Client) Cancel(ctx context.Context, id int) error {
	return c.post(ctx, fmt.Sprintf("/downloads/%d/cancel", id))
}

// Open opens the downloaded file with its default application.
func (c *Client) Open(ctx context.Context, id int) error {
	return c.post(ctx, fmt.Sprintf("/downloads/%d/open", id))
}

// Show reveals the downloaded file in the file manager.
func (c *Client) Show(ctx context.Context, id int) error {
	return c.post(ctx, fmt.Sprintf("/downloads/%d/show", id))
}

// Erase removes the record from the engine history. The file stays on disk.
func (c *Client) Erase(ctx context.Context, id int) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/downloads/%d", id), nil)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

// Download starts a new download and returns its id.
func (c *Client) Download(ctx context.Context, opts host.DownloadOptions) (int, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/downloads", opts)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	var result struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode download id: %w", err)
	}
	return result.ID, nil
}

// Subscribe returns a channel that receives engine events via SSE.
// After a reconnect a refresh hint is emitted since events may have been missed.
func (c *Client) Subscribe(ctx context.Context) (<-chan any, error) {
	ch := make(chan any, types.EventChannelBuffer)
	go c.streamWithReconnect(ctx, ch)
	return ch, nil
}

func (c *Client) streamWithReconnect(ctx context.Context, ch chan any) {
	defer close(ch)
	backoff := types.InitialBackoff
	connected := false

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := c.connectSSE(ctx, ch, connected)
		if err == nil || ctx.Err() != nil {
			return
		}
		if res.sawData {
			connected = true
			backoff = types.InitialBackoff
		}
		c.Logger.Debug("engine event stream lost", "err", err, "backoff", backoff)

		wait := backoff
		if !res.at.IsZero() {
			if d := time.Until(res.at); d > wait {
				wait = d
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if backoff < types.MaxBackoff {
			backoff *= 2
			if backoff > types.MaxBackoff {
				backoff = types.MaxBackoff
			}
		}
	}
}

type streamResult struct {
	at      time.Time // earliest retry time requested by the engine
	sawData bool      // the connection was established
}

func (c *Client) connectSSE(ctx context.Context, ch chan any, reconnect bool) (streamResult, error) {
	var res streamResult

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/events", nil)
	if err != nil {
		return res, err
	}

	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.SSEClient.Do(req)
	if err != nil {
		return res, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		res.at = httpheader.RetryAfter(resp.Header)
		return res, fmt.Errorf("failed to connect to event stream: %s", resp.Status)
	}
	res.sawData = true

	if reconnect && !send(ctx, ch, events.RefreshHint()) {
		return res, nil
	}

	reader := bufio.NewReader(resp.Body)
	for {
		eventType, data, err := readEvent(reader)
		if err != nil {
			if ctx.Err() != nil {
				return res, nil
			}
			return res, err
		}
		if eventType == "" || data == "" {
			continue
		}

		msg, err := decodeEvent(eventType, []byte(data))
		if err != nil {
			c.Logger.Debug("skipping engine event", "event", eventType, "err", err)
			continue
		}
		if !send(ctx, ch, msg) {
			return res, nil
		}
	}
}

// readEvent reads lines up to the blank line that dispatches one SSE event
func readEvent(reader *bufio.Reader) (string, string, error) {
	eventType := ""
	var dataLines []string

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		line = strings.TrimRight(line, "\r\n")

		// Blank line dispatches event
		if line == "" {
			return eventType, strings.Join(dataLines, "\n"), nil
		}
		// Comment/heartbeat
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}

func decodeEvent(eventType string, data []byte) (any, error) {
	switch eventType {
	case "created":
		var item types.DownloadItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, err
		}
		return events.DownloadCreatedMsg{Item: item}, nil
	case "changed":
		var delta types.DownloadDelta
		if err := json.Unmarshal(data, &delta); err != nil {
			return nil, err
		}
		return events.DownloadUpdateMsg{ID: delta.ID, Delta: &delta}, nil
	case "erased":
		var m events.DownloadErasedMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}

// send blocks until the event is delivered. Lifecycle events must not be dropped.
func send(ctx context.Context, ch chan any, msg any) bool {
	select {
	case ch <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
