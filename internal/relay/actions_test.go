package relay

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/events"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/host"
	"github.com/modcoretech/NG-Download-Manager/internal/testutil"
	"github.com/modcoretech/NG-Download-Manager/internal/utils"
)

// =============================================================================
// Single actions
// =============================================================================

func TestPerformAction_SimpleVerbs(t *testing.T) {
	f := newFixture(t, types.DownloadItem{ID: 1, State: types.StateInProgress})
	ctx := context.Background()

	require.NoError(t, f.relay.PerformAction(ctx, 1, types.ActionPause))
	item, _ := f.host.Item(1)
	assert.True(t, item.Paused)

	require.NoError(t, f.relay.PerformAction(ctx, 1, types.ActionResume))
	require.NoError(t, f.relay.PerformAction(ctx, 1, types.ActionShow))
	require.NoError(t, f.relay.PerformAction(ctx, 1, types.ActionCancel))
	require.NoError(t, f.relay.PerformAction(ctx, 1, types.ActionClear))

	_, exists := f.host.Item(1)
	assert.False(t, exists, "clear erases the record")
}

func TestPerformAction_NotFoundIsNormalised(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, action := range []types.Action{types.ActionPause, types.ActionOpen, types.ActionRetry, types.ActionCopyLink} {
		t.Run(string(action), func(t *testing.T) {
			err := f.relay.PerformAction(ctx, 404, action)
			assert.Equal(t, types.ErrNotFound, err)
			assert.Equal(t, "Download item not found (may have been cleared).", err.Error())
		})
	}

	t.Run("engine wording", func(t *testing.T) {
		f.host.FailOn("show", 0, errors.New("Invalid download id 7"))
		assert.Equal(t, types.ErrNotFound, f.relay.PerformAction(ctx, 7, types.ActionShow))
	})
}

func TestPerformAction_Open(t *testing.T) {
	tests := []struct {
		name    string
		item    types.DownloadItem
		openErr error
		wantErr string
	}{
		{"ok", types.DownloadItem{ID: 1, State: types.StateComplete, Exists: true}, nil, ""},
		{"not complete", types.DownloadItem{ID: 1, State: types.StateInProgress}, nil, "File not downloaded yet."},
		{"missing file", types.DownloadItem{ID: 1, State: types.StateComplete}, nil, "File no longer exists."},
		{"errored", types.DownloadItem{ID: 1, State: types.StateComplete, Exists: true, Error: "FILE_FAILED"}, nil, "Cannot open errored download (FILE_FAILED)."},
		{"gesture", types.DownloadItem{ID: 1, State: types.StateComplete, Exists: true}, fmt.Errorf("%w: nope", host.ErrUserGesture), types.ErrUserGesture.Error()},
		{"gesture wording", types.DownloadItem{ID: 1, State: types.StateComplete, Exists: true}, errors.New("This function must be called during a user gesture"), types.ErrUserGesture.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.item)
			if tt.openErr != nil {
				f.host.FailOn("open", 1, tt.openErr)
			}

			err := f.relay.PerformAction(context.Background(), 1, types.ActionOpen)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestPerformAction_OpenPreconditionIsTyped(t *testing.T) {
	f := newFixture(t, types.DownloadItem{ID: 1, State: types.StateInProgress})
	err := f.relay.PerformAction(context.Background(), 1, types.ActionOpen)
	assert.True(t, errors.Is(err, types.ErrPrecondition))
	assert.Empty(t, f.host.CallsTo("open"), "engine is not asked to open an unfinished file")
}

func TestPerformAction_RetryUsesSourceURL(t *testing.T) {
	f := newFixture(t, types.DownloadItem{ID: 3, URL: "http://a", State: types.StateInterrupted})

	require.NoError(t, f.relay.PerformAction(context.Background(), 3, types.ActionRetry))

	calls := f.host.Calls()
	var order []string
	for _, c := range calls {
		if c.Method == "erase" || c.Method == "download" {
			order = append(order, c.Method)
		}
	}
	assert.Equal(t, []string{"erase", "download"}, order, "old record is erased first")
	assert.Equal(t, []string{"http://a"}, f.host.DownloadedURLs())
}

func TestPerformAction_RetryPrefersFinalURL(t *testing.T) {
	f := newFixture(t, types.DownloadItem{ID: 3, URL: "http://a", FinalURL: "http://cdn.a/file", State: types.StateInterrupted})
	require.NoError(t, f.relay.PerformAction(context.Background(), 3, types.ActionRetry))
	assert.Equal(t, []string{"http://cdn.a/file"}, f.host.DownloadedURLs())
}

func TestPerformAction_RetryPreconditions(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, types.DownloadItem{ID: 3, URL: "http://a", State: types.StateComplete})
	err := f.relay.PerformAction(ctx, 3, types.ActionRetry)
	assert.True(t, errors.Is(err, types.ErrPrecondition))

	f = newFixture(t, types.DownloadItem{ID: 3, State: types.StateInterrupted})
	err = f.relay.PerformAction(ctx, 3, types.ActionRetry)
	require.Error(t, err)
	assert.Equal(t, "Cannot retry: Original URL not found.", err.Error())
	assert.Empty(t, f.host.CallsTo("erase"), "nothing is erased when retry cannot start")
}

func TestPerformAction_CopyLinkAndSaveAs(t *testing.T) {
	f := newFixture(t,
		types.DownloadItem{ID: 1, URL: "http://a", FinalURL: "http://b", State: types.StateComplete},
		types.DownloadItem{ID: 2, State: types.StateComplete},
	)
	ctx := context.Background()

	require.NoError(t, f.relay.PerformAction(ctx, 1, types.ActionCopyLink))
	assert.Equal(t, []string{"http://b"}, f.copier.texts)

	require.NoError(t, f.relay.PerformAction(ctx, 1, types.ActionSaveAs))
	assert.Equal(t, []string{"http://b (saveAs)"}, f.host.DownloadedURLs())

	assert.True(t, errors.Is(f.relay.PerformAction(ctx, 2, types.ActionCopyLink), types.ErrPrecondition))
	assert.True(t, errors.Is(f.relay.PerformAction(ctx, 2, types.ActionSaveAs), types.ErrPrecondition))

	f.copier.err = types.ErrHelperUnavailable
	assert.Equal(t, types.ErrHelperUnavailable, f.relay.PerformAction(ctx, 1, types.ActionCopyLink))
}

func TestPerformAction_Unknown(t *testing.T) {
	f := newFixture(t, types.DownloadItem{ID: 1})
	err := f.relay.PerformAction(context.Background(), 1, types.Action("explode"))
	require.Error(t, err)
	assert.Equal(t, "Unknown action: explode", err.Error())
}

// =============================================================================
// Batch and bulk
// =============================================================================

func TestPerformBatchAction_IsolatesFailures(t *testing.T) {
	f := newFixture(t,
		types.DownloadItem{ID: 1, State: types.StateInProgress},
		types.DownloadItem{ID: 2, State: types.StateComplete},
		types.DownloadItem{ID: 3, State: types.StateInProgress},
	)
	f.host.FailOn("cancel", 2, errors.New("Download must be in progress"))

	res := f.relay.PerformBatchAction(context.Background(), []int{1, 2, 3}, types.ActionCancel)

	assert.Equal(t, []int{1, 3}, res.Success)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 2, res.Failed[0].ID)
	assert.Equal(t, "Download must be in progress", res.Failed[0].Reason)
	assert.ElementsMatch(t, []int{1, 2, 3}, f.host.CallsTo("cancel"))
}

func TestPerformBatchAction_KeepsInputOrder(t *testing.T) {
	var items []types.DownloadItem
	var ids []int
	for i := 40; i > 0; i-- {
		items = append(items, types.DownloadItem{ID: i})
		ids = append(ids, i)
	}
	f := newFixture(t, items...)

	res := f.relay.PerformBatchAction(context.Background(), ids, types.ActionPause)
	assert.Equal(t, ids, res.Success)
	assert.Empty(t, res.Failed)
}

func TestPerformBulkAction_ClearAllFinished(t *testing.T) {
	var items []types.DownloadItem
	for i := 1; i <= 120; i++ {
		state := types.StateComplete
		if i%3 == 0 {
			state = types.StateInterrupted
		}
		items = append(items, types.DownloadItem{ID: i, State: state})
	}
	items = append(items, types.DownloadItem{ID: 500, State: types.StateInProgress})
	f := newFixture(t, items...)
	f.host.FailOn("erase", 7, errors.New("locked"))

	require.NoError(t, f.relay.PerformBulkAction(context.Background(), types.BulkClearAllFinished))

	assert.Len(t, f.host.CallsTo("erase"), 120)
	_, kept := f.host.Item(500)
	assert.True(t, kept, "active downloads are untouched")
	_, failedKept := f.host.Item(7)
	assert.True(t, failedKept, "a failed erase does not abort the rest")

	msgs := f.pusher.Messages()
	require.NotEmpty(t, msgs)
	update, ok := msgs[len(msgs)-1].(events.DownloadUpdateMsg)
	require.True(t, ok)
	assert.True(t, update.IsRefreshHint())
}

// gatedHost holds every Cancel and Erase until target calls are in flight at once,
// or a second has passed, and records the peak number of concurrent calls.
type gatedHost struct {
	*testutil.FakeHost
	target int

	mu       sync.Mutex
	inFlight int
	peak     int
	open     chan struct{}
	once     sync.Once
}

func newGatedHost(target int, items ...types.DownloadItem) *gatedHost {
	return &gatedHost{
		FakeHost: testutil.NewFakeHost(items...),
		target:   target,
		open:     make(chan struct{}),
	}
}

func (g *gatedHost) enter() {
	g.mu.Lock()
	g.inFlight++
	g.peak = max(g.peak, g.inFlight)
	reached := g.inFlight >= g.target
	g.mu.Unlock()

	if reached {
		g.once.Do(func() { close(g.open) })
	}
	select {
	case <-g.open:
	case <-time.After(time.Second):
	}

	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()
}

func (g *gatedHost) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

func (g *gatedHost) Cancel(ctx context.Context, id int) error {
	g.enter()
	return g.FakeHost.Cancel(ctx, id)
}

func (g *gatedHost) Erase(ctx context.Context, id int) error {
	g.enter()
	return g.FakeHost.Erase(ctx, id)
}

func TestPerformBatchAction_RunsEveryIDConcurrently(t *testing.T) {
	n := runtime.GOMAXPROCS(0) + 8
	var items []types.DownloadItem
	var ids []int
	for i := 1; i <= n; i++ {
		items = append(items, types.DownloadItem{ID: i, State: types.StateInProgress})
		ids = append(ids, i)
	}
	gated := newGatedHost(n, items...)
	r := New(Options{Downloads: gated, Pusher: &recordingPusher{}, Logger: utils.Discard()})

	res := r.PerformBatchAction(context.Background(), ids, types.ActionCancel)

	assert.Len(t, res.Success, n)
	assert.Equal(t, n, gated.Peak(), "every id is in flight at the same time")
}

func TestPerformBulkAction_ErasesOneFullBatchAtATime(t *testing.T) {
	var items []types.DownloadItem
	for i := 1; i <= ClearBatchSize+10; i++ {
		items = append(items, types.DownloadItem{ID: i, State: types.StateComplete})
	}
	gated := newGatedHost(ClearBatchSize, items...)
	r := New(Options{Downloads: gated, Pusher: &recordingPusher{}, Logger: utils.Discard()})

	require.NoError(t, r.PerformBulkAction(context.Background(), types.BulkClearAllFinished))

	assert.Len(t, gated.CallsTo("erase"), ClearBatchSize+10)
	assert.Equal(t, ClearBatchSize, gated.Peak(), "a whole batch runs at once and batches do not overlap")
}

func TestPerformBulkAction_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.relay.PerformBulkAction(ctx, types.BulkAction("pauseAll"))
	require.Error(t, err)
	assert.Equal(t, "Unsupported bulk action: pauseAll", err.Error())

	f.host.FailOn("search", 0, errors.New("engine down"))
	assert.Error(t, f.relay.PerformBulkAction(ctx, types.BulkClearAllFinished))
	assert.Empty(t, f.pusher.Messages(), "no refresh hint when nothing was cleared")
}

// =============================================================================
// Downloads from links
// =============================================================================

func TestDownloadURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.relay.DownloadURL(ctx, "  https://example.com/file.zip ")
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, []string{"https://example.com/file.zip"}, f.host.DownloadedURLs())

	_, err = f.relay.DownloadURL(ctx, "not a url")
	assert.True(t, errors.Is(err, utils.ErrInvalidURL))
}

func TestHandleContextMenu(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.relay.HandleContextMenu(ctx, ContextMenuClick{MenuItemID: MenuDownloadLink, LinkURL: "http://a/x.zip"})
	require.NoError(t, err)
	_, err = f.relay.HandleContextMenu(ctx, ContextMenuClick{MenuItemID: MenuDownloadMedia, SrcURL: "http://a/y.mp4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a/x.zip", "http://a/y.mp4"}, f.host.DownloadedURLs())

	_, err = f.relay.HandleContextMenu(ctx, ContextMenuClick{MenuItemID: MenuDownloadMedia})
	assert.True(t, errors.Is(err, types.ErrPrecondition))

	_, err = f.relay.HandleContextMenu(ctx, ContextMenuClick{MenuItemID: "other"})
	assert.Error(t, err)
}

func TestHandleNotificationClick(t *testing.T) {
	f := newFixture(t,
		types.DownloadItem{ID: 9, State: types.StateComplete, Exists: true},
		types.DownloadItem{ID: 10, State: types.StateComplete, Exists: false},
	)
	ctx := context.Background()

	require.NoError(t, f.relay.HandleNotificationClick(ctx, "9_complete"))
	assert.Equal(t, []int{9}, f.host.CallsTo("show"))
	assert.Contains(t, f.host.Cleared, "9_complete")

	err := f.relay.HandleNotificationClick(ctx, "10_complete")
	assert.True(t, errors.Is(err, types.ErrPrecondition))
	assert.Contains(t, f.host.Cleared, "10_complete")

	assert.Equal(t, types.ErrNotFound, f.relay.HandleNotificationClick(ctx, "11_fail"))
	assert.Error(t, f.relay.HandleNotificationClick(ctx, "garbage"))
}

func TestGetDownloads(t *testing.T) {
	f := newFixture(t)
	items, err := f.relay.GetDownloads(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
