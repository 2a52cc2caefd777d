package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/events"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/testutil"
	"github.com/modcoretech/NG-Download-Manager/internal/view"
)

type fakeBackend struct {
	mu        sync.Mutex
	items     []types.DownloadItem
	settings  *config.Settings
	batch     types.BatchResult
	batchErr  error
	performed []string
	urls      []string
	bulk      []types.BulkAction
	saved     []string
	saveErr   error
}

func (b *fakeBackend) GetDownloads(context.Context) ([]types.DownloadItem, error) {
	return b.items, nil
}

func (b *fakeBackend) PerformAction(_ context.Context, id int, action types.Action) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.performed = append(b.performed, fmt.Sprintf("%s:%d", action, id))
	return nil
}

func (b *fakeBackend) PerformBatchAction(_ context.Context, ids []int, action types.Action) (types.BatchResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.performed = append(b.performed, fmt.Sprintf("%s:%v", action, ids))
	return b.batch, b.batchErr
}

func (b *fakeBackend) PerformBulkAction(_ context.Context, action types.BulkAction) error {
	b.bulk = append(b.bulk, action)
	return nil
}

func (b *fakeBackend) DownloadURL(_ context.Context, rawURL string) (int, error) {
	b.urls = append(b.urls, rawURL)
	return 42, nil
}

func (b *fakeBackend) GetSettings(context.Context) (*config.Settings, error) {
	if b.settings == nil {
		return config.DefaultSettings(), nil
	}
	return b.settings, nil
}

func (b *fakeBackend) UpdateSetting(_ context.Context, key, value string) (*config.Settings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved = append(b.saved, key+"="+value)
	if b.saveErr != nil {
		return nil, b.saveErr
	}
	s := config.DefaultSettings()
	if err := s.Set(key, value); err != nil {
		return nil, err
	}
	return s, nil
}

func (b *fakeBackend) Subscribe(context.Context) (<-chan any, error) {
	return make(chan any), nil
}

var testNow = time.Date(2026, time.March, 10, 15, 0, 0, 0, time.Local)

func testItems() []types.DownloadItem {
	return []types.DownloadItem{
		{ID: 1, Filename: "/dl/running.iso", URL: "https://example.com/running.iso", State: types.StateInProgress, BytesReceived: 50, TotalBytes: 100, StartTime: testNow.Add(-time.Minute).Format(time.RFC3339)},
		{ID: 2, Filename: "/dl/done.zip", URL: "https://example.com/done.zip", State: types.StateComplete, Exists: true, TotalBytes: 100, BytesReceived: 100, StartTime: testNow.Add(-2 * time.Minute).Format(time.RFC3339)},
		{ID: 3, Filename: "/dl/broken.pdf", URL: "https://example.com/broken.pdf", State: types.StateInterrupted, Error: "NETWORK_FAILED", StartTime: testNow.Add(-3 * time.Minute).Format(time.RFC3339)},
	}
}

func newTestModel(t *testing.T, b *fakeBackend) (RootModel, *testutil.Clock) {
	t.Helper()
	prev := hasDarkBackground
	hasDarkBackground = func() bool { return true }
	t.Cleanup(func() { hasDarkBackground = prev })

	clock := testutil.NewClock(testNow)
	m := InitialRootModel(context.Background(), Options{Backend: b, Now: clock.Now})
	m = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = send(t, m, snapshotMsg{items: b.items})
	return m, clock
}

func send(t *testing.T, m RootModel, msg tea.Msg) RootModel {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(RootModel)
}

func sendCmd(t *testing.T, m RootModel, msg tea.Msg) (RootModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(RootModel), cmd
}

func press(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// =============================================================================
// Rendering
// =============================================================================

func TestView_Dashboard(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{items: testItems()})
	out := m.View()

	assert.Contains(t, out, "Total: 3 | Active: 1")
	assert.Contains(t, out, "running.iso")
	assert.Contains(t, out, "done.zip")
	assert.Contains(t, out, "Error: NETWORK_FAILED")
	assert.Contains(t, out, "Page 1 of 1")
	assert.Contains(t, out, "All (3)")
}

func TestView_LoadingBeforeSize(t *testing.T) {
	m := InitialRootModel(context.Background(), Options{Backend: &fakeBackend{}})
	assert.Equal(t, "Loading...", m.View())
}

func TestView_Placeholder(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{})
	assert.Contains(t, m.View(), "No downloads yet.")

	m = send(t, m, snapshotMsg{err: errors.New("relay unreachable")})
	assert.Contains(t, m.View(), "Error: relay unreachable. Try refreshing.")
}

func TestView_Details(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{items: testItems()})
	m = send(t, m, press("down"))
	m = send(t, m, press("down"))
	m = send(t, m, press("enter"))
	require.Equal(t, DetailState, m.state)

	out := m.View()
	assert.Contains(t, out, "File Details")
	assert.Contains(t, out, "broken.pdf")
	assert.Contains(t, out, "[r] retry")

	m = send(t, m, press("esc"))
	assert.Equal(t, DashboardState, m.state)
}

func TestView_Settings(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{items: testItems()})
	m = send(t, m, press("g"))
	require.Equal(t, SettingsState, m.state)
	assert.Contains(t, m.View(), "Popup theme")

	m = send(t, m, press("down"))
	assert.Equal(t, 1, m.SettingsSelectedRow)
	assert.Contains(t, m.View(), "Value: True")

	m = send(t, m, press("esc"))
	assert.Equal(t, DashboardState, m.state)
}

// =============================================================================
// Settings and theme
// =============================================================================

func TestResolveTheme(t *testing.T) {
	prev := hasDarkBackground
	t.Cleanup(func() { hasDarkBackground = prev })

	assert.Equal(t, config.ThemeLight, ResolveTheme(config.ThemeLight).Name)
	assert.Equal(t, config.ThemeDark, ResolveTheme(config.ThemeDark).Name)

	hasDarkBackground = func() bool { return false }
	assert.Equal(t, config.ThemeLight, ResolveTheme(config.ThemeSystem).Name)
	hasDarkBackground = func() bool { return true }
	assert.Equal(t, config.ThemeDark, ResolveTheme(config.ThemeSystem).Name)
}

func TestUpdate_SettingsApplied(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{items: testItems()})

	s := config.DefaultSettings()
	s.Theme = config.ThemeLight
	s.ItemsPerPage = 25
	s.DefaultSort = "filenameAsc"
	m = send(t, m, settingsMsg{settings: s})

	assert.Equal(t, config.ThemeLight, m.styles.Theme.Name)
	assert.Equal(t, 25, m.ctrl.ItemsPerPage())
	assert.Equal(t, []int{3, 2, 1}, recordIDs(m))
}

func recordIDs(m RootModel) []int {
	var out []int
	for _, it := range m.ctrl.Records() {
		out = append(out, it.ID)
	}
	return out
}

// =============================================================================
// Actions
// =============================================================================

func TestUpdate_ItemAction(t *testing.T) {
	b := &fakeBackend{items: testItems()}
	m, _ := newTestModel(t, b)

	m, cmd := sendCmd(t, m, press("p"))
	require.NotNil(t, cmd)
	done := cmd()
	require.IsType(t, actionDoneMsg{}, done)
	m = send(t, m, done)

	assert.Equal(t, []string{"pause:1"}, b.performed)
}

func TestUpdate_UnavailableActionIsIgnored(t *testing.T) {
	b := &fakeBackend{items: testItems()}
	m, _ := newTestModel(t, b)
	m = send(t, m, press("down"))

	_, cmd := sendCmd(t, m, press("p"))
	assert.Nil(t, cmd, "completed downloads cannot be paused")
	assert.Empty(t, b.performed)
}

func TestUpdate_ShowErrorIsLocal(t *testing.T) {
	b := &fakeBackend{items: testItems()}
	m, _ := newTestModel(t, b)
	m = send(t, m, press("down"))
	m = send(t, m, press("down"))

	m, cmd := sendCmd(t, m, press("e"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Error details: NETWORK_FAILED")
	assert.Empty(t, b.performed)
}

func TestUpdate_BatchOverSelection(t *testing.T) {
	b := &fakeBackend{
		items: testItems(),
		batch: types.BatchResult{Success: []int{1}, Failed: []types.BatchFailure{{ID: 2, Reason: "Download must be in progress"}}},
	}
	m, _ := newTestModel(t, b)

	m = send(t, m, press(" "))
	m = send(t, m, press("down"))
	m = send(t, m, press(" "))
	require.Equal(t, []int{1, 2}, m.ctrl.Selected())

	m, cmd := sendCmd(t, m, press("c"))
	require.NotNil(t, cmd)
	m = send(t, m, cmd())

	assert.Equal(t, []string{"cancel:[1 2]"}, b.performed)
	assert.Empty(t, m.ctrl.Selected())
	assert.Contains(t, m.View(), "Batch 'cancel' failed: Download must be in progress")
}

func TestUpdate_BatchFailureAlerts(t *testing.T) {
	b := &fakeBackend{items: testItems(), batchErr: errors.New("relay unreachable")}
	m, _ := newTestModel(t, b)
	m = send(t, m, press("a"))

	m, cmd := sendCmd(t, m, press("p"))
	require.NotNil(t, cmd)
	m = send(t, m, cmd())

	require.Equal(t, AlertState, m.state)
	assert.Contains(t, m.View(), "Batch action 'pause' failed: relay unreachable")

	m = send(t, m, press("x"))
	assert.Equal(t, DashboardState, m.state)
}

func TestUpdate_ClearFinished(t *testing.T) {
	b := &fakeBackend{items: testItems()}
	m, _ := newTestModel(t, b)

	_, cmd := sendCmd(t, m, press("X"))
	require.NotNil(t, cmd)
	assert.Equal(t, bulkDoneMsg{}, cmd())
	assert.Equal(t, []types.BulkAction{types.BulkClearAllFinished}, b.bulk)
}

func TestUpdate_PageSizeCyclesAndPersists(t *testing.T) {
	var items []types.DownloadItem
	for i := 1; i <= 30; i++ {
		items = append(items, types.DownloadItem{ID: i, Filename: fmt.Sprintf("/dl/file-%02d.bin", i), State: types.StateComplete})
	}
	b := &fakeBackend{items: items}
	m, _ := newTestModel(t, b)

	m = send(t, m, press("l"))
	m = send(t, m, press("l"))
	require.Equal(t, 3, m.ctrl.Page())

	m, cmd := sendCmd(t, m, press("z"))
	require.NotNil(t, cmd)
	assert.Equal(t, 25, m.ctrl.ItemsPerPage())
	assert.Equal(t, 1, m.ctrl.Page())
	assert.Equal(t, 2, m.ctrl.TotalPages())
	assert.Equal(t, 0, m.cursor)

	m = send(t, m, cmd())
	assert.Equal(t, []string{"itemsPerPage=25"}, b.saved)
	assert.Equal(t, 25, m.settings.ItemsPerPage)

	for _, want := range []int{50, 100, 10} {
		m, cmd = sendCmd(t, m, press("z"))
		require.NotNil(t, cmd)
		m = send(t, m, cmd())
		assert.Equal(t, want, m.ctrl.ItemsPerPage())
	}
	assert.Equal(t, []string{"itemsPerPage=25", "itemsPerPage=50", "itemsPerPage=100", "itemsPerPage=10"}, b.saved)
}

func TestUpdate_PageSizeSaveFailure(t *testing.T) {
	b := &fakeBackend{items: testItems(), saveErr: errors.New("relay unreachable")}
	m, _ := newTestModel(t, b)

	m, cmd := sendCmd(t, m, press("z"))
	require.NotNil(t, cmd)
	m = send(t, m, cmd())

	assert.Equal(t, 25, m.ctrl.ItemsPerPage(), "the view keeps the new size")
	assert.Equal(t, 10, m.settings.ItemsPerPage)
	assert.Contains(t, m.View(), "Could not save setting: relay unreachable")
}

func TestUpdate_AddDownload(t *testing.T) {
	b := &fakeBackend{items: testItems()}
	m, clock := newTestModel(t, b)

	m = send(t, m, press("n"))
	require.Equal(t, InputState, m.state)
	assert.Contains(t, m.View(), "Add Download")

	m = send(t, m, press("https://example.com/new.zip"))
	m, cmd := sendCmd(t, m, press("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, DashboardState, m.state)

	m = send(t, m, cmd())
	assert.Equal(t, []string{"https://example.com/new.zip"}, b.urls)
	assert.Contains(t, m.View(), "Download started (#42)")

	clock.Advance(NoticeDuration)
	m = send(t, m, tickMsg(clock.Now()))
	assert.NotContains(t, m.View(), "Download started")
}

func TestUpdate_AddInvalidURL(t *testing.T) {
	b := &fakeBackend{items: testItems()}
	m, _ := newTestModel(t, b)

	m = send(t, m, press("n"))
	m = send(t, m, press("not a url"))
	m, cmd := sendCmd(t, m, press("enter"))
	m = send(t, m, cmd())

	assert.Equal(t, AlertState, m.state)
	assert.Empty(t, b.urls)
}

// =============================================================================
// Pushes, search and filters
// =============================================================================

func TestUpdate_Pushes(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{items: testItems()})

	m = send(t, m, pushMsg{msg: events.DownloadErasedMsg{ID: 3}})
	assert.Len(t, m.ctrl.All(), 2)

	m = send(t, m, pushMsg{msg: events.DownloadUpdateMsg{ID: 1, Delta: &types.DownloadDelta{ID: 1, Paused: types.To(true)}}})
	assert.Contains(t, m.View(), "Paused")

	m = send(t, m, pushMsg{msg: events.NotificationMsg{ID: "2_complete", Title: "Download complete", Message: "done.zip"}})
	assert.Contains(t, m.View(), "Download complete: done.zip")

	m = send(t, m, pushMsg{msg: events.RefreshHint()})
	assert.True(t, m.ctrl.Loading())
}

func TestUpdate_Search(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{items: testItems()})

	m = send(t, m, press("/"))
	require.Equal(t, SearchState, m.state)
	m = send(t, m, press("brok"))
	assert.Equal(t, "brok", m.ctrl.Params().Search)
	assert.Equal(t, []int{3}, recordIDs(m))

	m = send(t, m, press("enter"))
	assert.Equal(t, DashboardState, m.state)
	assert.Equal(t, "brok", m.ctrl.Params().Search)

	m = send(t, m, press("/"))
	m = send(t, m, press("esc"))
	assert.Empty(t, m.ctrl.Params().Search)
	assert.Len(t, m.ctrl.Records(), 3)
}

func TestUpdate_FilterCycling(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{items: testItems()})

	m = send(t, m, press("f"))
	assert.Equal(t, view.StatusActive, m.ctrl.Params().Status)
	assert.Equal(t, []int{1}, recordIDs(m))

	m = send(t, m, press("t"))
	assert.Equal(t, view.SortStartTimeAsc, m.ctrl.Params().Sort)

	m = send(t, m, press("d"))
	assert.Equal(t, view.DateToday, m.ctrl.Params().Date)
}

func TestUpdate_SpeedHistory(t *testing.T) {
	items := testItems()
	items[0].CurrentSpeed = 2 * Megabyte
	m, _ := newTestModel(t, &fakeBackend{items: items})

	for i := 0; i < SpeedHistoryLen+5; i++ {
		m = send(t, m, tickMsg(testNow))
	}
	require.Len(t, m.SpeedHistory, SpeedHistoryLen)
	assert.InDelta(t, 2.0, m.SpeedHistory[len(m.SpeedHistory)-1], 0.001)
}

// =============================================================================
// Helpers
// =============================================================================

func TestRenderMultiLineGraph(t *testing.T) {
	out := renderMultiLineGraph([]float64{0, 1, 2}, 10, 4, 2, lipgloss.Color("#fff"), lipgloss.Color("#000"))
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	for _, l := range lines {
		assert.Equal(t, 10, lipgloss.Width(l))
	}
	assert.Empty(t, renderMultiLineGraph(nil, 0, 4, 1, "", ""))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
}
