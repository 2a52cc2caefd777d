package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/events"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/relay"
	"github.com/modcoretech/NG-Download-Manager/internal/testutil"
	"github.com/modcoretech/NG-Download-Manager/internal/utils"
)

const testToken = "test-token"

type harness struct {
	host   *testutil.FakeHost
	hub    *Hub
	server *Server
	client *Client
	url    string
}

func newHarness(t *testing.T, items ...types.DownloadItem) *harness {
	t.Helper()
	fake := testutil.NewFakeHost(items...)
	hub := NewHub(utils.Discard())
	r := relay.New(relay.Options{
		Downloads: fake,
		Notifier:  fake,
		Badge:     fake,
		Pusher:    hub,
		Logger:    utils.Discard(),
	})
	store, err := config.OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.Update(context.Background(), config.KeyItemsPerPage, "25")
	require.NoError(t, err)
	server := NewServer(r, store, hub, testToken, utils.Discard())

	srv := testutil.NewHTTPServerT(t, server.Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return &harness{
		host:   fake,
		hub:    hub,
		server: server,
		client: NewClient(srv.URL, testToken, utils.Discard()),
		url:    srv.URL,
	}
}

// =============================================================================
// HTTP surface
// =============================================================================

func TestServer_HealthNeedsNoToken(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_RejectsMissingToken(t *testing.T) {
	h := newHarness(t)

	body := bytes.NewBufferString(`{"action":"getDownloads"}`)
	resp, err := http.Post(h.url+"/message", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var decoded Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.False(t, decoded.Success)

	bad := NewClient(h.url, "wrong", utils.Discard())
	_, err = bad.GetDownloads(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Unauthorized", err.Error())
}

func TestServer_MalformedEnvelope(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodPost, h.url+"/message", bytes.NewBufferString("{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var decoded Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.False(t, decoded.Success)
	assert.Equal(t, "invalid json", decoded.Error)
}

// =============================================================================
// Dispatch
// =============================================================================

func TestDispatch_UnknownAction(t *testing.T) {
	h := newHarness(t)
	got := h.server.Dispatch(context.Background(), events.Envelope{Action: "launchRockets"})
	assert.Equal(t, Response{Error: "Unknown action: launchRockets"}, got)
}

func TestDispatch_InvalidPayload(t *testing.T) {
	h := newHarness(t)
	got := h.server.Dispatch(context.Background(), events.Envelope{
		Action:  ActionPerformDownloadAction,
		Payload: json.RawMessage(`{"downloadId":"seven"}`),
	})
	resp, ok := got.(Response)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid payload")
}

func TestClient_GetDownloads(t *testing.T) {
	h := newHarness(t,
		types.DownloadItem{ID: 1, Filename: "/d/a.zip", State: types.StateComplete},
		types.DownloadItem{ID: 2, Filename: "/d/b.iso", State: types.StateInProgress},
	)

	items, err := h.client.GetDownloads(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].ID)

	empty := newHarness(t)
	items, err = empty.client.GetDownloads(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestClient_PerformAction(t *testing.T) {
	h := newHarness(t, types.DownloadItem{ID: 1, State: types.StateInProgress})
	ctx := context.Background()

	require.NoError(t, h.client.PerformAction(ctx, 1, types.ActionPause))
	item, _ := h.host.Item(1)
	assert.True(t, item.Paused)

	err := h.client.PerformAction(ctx, 99, types.ActionPause)
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound.Error(), err.Error())

	err = h.client.PerformAction(ctx, 1, types.ActionCopySourceLink)
	require.Error(t, err)
	assert.Equal(t, "Unknown action: copySourceLink", err.Error(), "view-only actions never reach the relay")
}

func TestClient_PerformBatchAction(t *testing.T) {
	h := newHarness(t,
		types.DownloadItem{ID: 1, State: types.StateInProgress},
		types.DownloadItem{ID: 2, State: types.StateComplete},
		types.DownloadItem{ID: 3, State: types.StateInProgress},
	)
	h.host.FailOn("cancel", 2, errors.New("Download must be in progress"))

	res, err := h.client.PerformBatchAction(context.Background(), []int{1, 2, 3}, types.ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, res.Success)
	assert.Equal(t, []types.BatchFailure{{ID: 2, Reason: "Download must be in progress"}}, res.Failed)

	_, err = h.client.PerformBatchAction(context.Background(), []int{1}, types.Action("explode"))
	assert.Error(t, err)
}

func TestClient_BulkAndDownloadURL(t *testing.T) {
	h := newHarness(t,
		types.DownloadItem{ID: 1, State: types.StateComplete},
		types.DownloadItem{ID: 2, State: types.StateInterrupted},
	)
	ctx := context.Background()

	require.NoError(t, h.client.PerformBulkAction(ctx, types.BulkClearAllFinished))
	assert.ElementsMatch(t, []int{1, 2}, h.host.CallsTo("erase"))

	err := h.client.PerformBulkAction(ctx, types.BulkAction("nuke"))
	require.Error(t, err)
	assert.Equal(t, "Unsupported bulk action: nuke", err.Error())

	id, err := h.client.DownloadURL(ctx, "https://example.com/a.zip")
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = h.client.DownloadURL(ctx, "javascript:alert(1)")
	assert.Error(t, err)
}

func TestClient_NotificationAndSettings(t *testing.T) {
	h := newHarness(t, types.DownloadItem{ID: 4, State: types.StateComplete, Exists: true})
	ctx := context.Background()

	require.NoError(t, h.client.NotificationClicked(ctx, "4_complete", 0))
	assert.Equal(t, []int{4}, h.host.CallsTo("show"))

	settings, err := h.client.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, settings.ItemsPerPage)
}

func TestClient_UpdateSetting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	settings, err := h.client.UpdateSetting(ctx, config.KeyItemsPerPage, "50")
	require.NoError(t, err)
	assert.Equal(t, 50, settings.ItemsPerPage)

	reloaded, err := h.client.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, reloaded.ItemsPerPage)

	_, err = h.client.UpdateSetting(ctx, config.KeyItemsPerPage, "7")
	assert.Error(t, err)
	_, err = h.client.UpdateSetting(ctx, "volume", "11")
	assert.Error(t, err)

	reloaded, err = h.client.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, reloaded.ItemsPerPage, "rejected values are not stored")
}

func TestClient_ContextMenu(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id, err := h.client.ContextMenu(ctx, relay.ContextMenuClick{
		MenuItemID: relay.MenuDownloadMedia,
		SrcURL:     "https://cdn.example.com/clip.mp4",
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = h.client.ContextMenu(ctx, relay.ContextMenuClick{MenuItemID: relay.MenuDownloadLink})
	require.Error(t, err)
	assert.Equal(t, "No URL found for download-link.", err.Error())
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", testToken, utils.Discard())
	_, err := c.GetDownloads(context.Background())
	assert.True(t, errors.Is(err, ErrRelayUnreachable))
	assert.True(t, errors.Is(c.Health(context.Background()), ErrRelayUnreachable))
}

// =============================================================================
// Push stream
// =============================================================================

func TestHub_NoListeners(t *testing.T) {
	hub := NewHub(utils.Discard())
	err := hub.Push(context.Background(), events.DownloadErasedMsg{ID: 1})
	assert.True(t, errors.Is(err, relay.ErrNoListeners))

	err = hub.Push(context.Background(), struct{}{})
	assert.True(t, errors.Is(err, events.ErrUnknownMessage))
}

func TestHub_BroadcastToSubscriber(t *testing.T) {
	h := newHarness(t)
	h.hub.OnConnect = func() []any {
		return []any{events.BadgeUpdateMsg{Text: "3", Color: relay.BadgeColorActive}}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := h.client.Subscribe(ctx)
	require.NoError(t, err)

	first := receive(t, stream)
	assert.Equal(t, events.BadgeUpdateMsg{Text: "3", Color: relay.BadgeColorActive}, first)

	require.Eventually(t, func() bool { return h.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, h.hub.Push(ctx, events.DownloadErasedMsg{ID: 7}))
	assert.Equal(t, events.DownloadErasedMsg{ID: 7}, receive(t, stream))

	require.NoError(t, h.hub.Push(ctx, events.RefreshHint()))
	update, ok := receive(t, stream).(events.DownloadUpdateMsg)
	require.True(t, ok)
	assert.True(t, update.IsRefreshHint())

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, open := <-stream:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestClient_SubscribeNeedsToken(t *testing.T) {
	h := newHarness(t)
	bad := NewClient(h.url, "nope", utils.Discard())
	_, err := bad.Subscribe(context.Background())
	assert.True(t, errors.Is(err, ErrRelayUnreachable))
}

func receive(t *testing.T, stream <-chan any) any {
	t.Helper()
	select {
	case msg := <-stream:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push")
		return nil
	}
}

// =============================================================================
// Token
// =============================================================================

func TestLoadOrCreateToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")

	token, err := LoadOrCreateToken(path)
	require.NoError(t, err)
	assert.Len(t, token, 36)

	again, err := LoadOrCreateToken(path)
	require.NoError(t, err)
	assert.Equal(t, token, again, "token is stable once written")

	require.NoError(t, os.WriteFile(path, []byte("  custom\n"), 0o600))
	custom, err := LoadOrCreateToken(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", custom)
}
