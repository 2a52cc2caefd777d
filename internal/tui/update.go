package tui

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/events"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/view"
)

// Update handles messages and updates the model
func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case settingsMsg:
		if msg.err != nil {
			m.logger.Warn("settings unavailable, using defaults", "err", msg.err)
			return m, nil
		}
		m.settings = msg.settings
		m.ctrl.ApplySettings(msg.settings)
		m.applyTheme(ResolveTheme(msg.settings.Theme))
		m.clampCursor()
		return m, nil

	case settingSavedMsg:
		if msg.err != nil {
			m.logger.Warn("saving setting failed", "key", msg.key, "err", msg.err)
			m.setNotice("Could not save setting: " + msg.err.Error())
			return m, nil
		}
		m.settings = msg.settings
		return m, nil

	case snapshotMsg:
		if msg.err != nil {
			m.logger.Error("fetch downloads failed", "err", msg.err)
		}
		m.ctrl.SetSnapshot(msg.items, msg.err)
		m.clampCursor()
		return m, nil

	case subscribedMsg:
		if msg.err != nil {
			m.logger.Error("subscribe failed", "err", msg.err)
			m.setNotice("Live updates unavailable: " + msg.err.Error())
			return m, nil
		}
		m.pushes = msg.ch
		return m, listenForActivity(m.pushes)

	case pushMsg:
		cmd := m.handlePush(msg.msg)
		return m, tea.Batch(cmd, listenForActivity(m.pushes))

	case streamClosedMsg:
		m.logger.Debug("push stream closed")
		m.pushes = nil
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.logger.Warn("action failed", "id", msg.req.ID, "action", msg.req.Action, "err", msg.err)
		}
		m.ctrl.CompleteAction(msg.req, msg.err)
		return m, nil

	case batchDoneMsg:
		if err := m.ctrl.CompleteBatch(msg.req, msg.res, msg.err); err != nil {
			m.logger.Error("batch failed", "action", msg.req.Action, "err", err)
			m.showAlert(err.Error())
		}
		return m, nil

	case bulkDoneMsg:
		if msg.err != nil {
			m.logger.Error("clear finished failed", "err", msg.err)
			m.showAlert("Failed to clear finished downloads: " + msg.err.Error())
		}
		return m, nil

	case addDoneMsg:
		if msg.err != nil {
			m.showAlert("Failed to start download: " + msg.err.Error())
			return m, nil
		}
		m.setNotice(fmt.Sprintf("Download started (#%d)", msg.id))
		return m, nil

	case tickMsg:
		m.ctrl.ExpireMessages()
		m.sampleSpeed()
		if !m.noticeUntil.IsZero() && !m.now().Before(m.noticeUntil) {
			m.notice = ""
			m.noticeUntil = time.Time{}
		}
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *RootModel) handlePush(msg any) tea.Cmd {
	switch p := msg.(type) {
	case events.NotificationMsg:
		m.setNotice(p.Title + ": " + p.Message)
		return nil
	case events.BadgeUpdateMsg:
		return nil
	}

	switch m.ctrl.HandlePush(msg) {
	case view.OutcomeResync:
		m.ctrl.BeginLoad()
		return m.fetch()
	case view.OutcomeRecomputed:
		m.clampCursor()
	}
	return nil
}

func (m *RootModel) setNotice(text string) {
	m.notice = text
	m.noticeUntil = m.now().Add(NoticeDuration)
}

func (m *RootModel) showAlert(text string) {
	m.alert = text
	m.state = AlertState
}

func (m *RootModel) sampleSpeed() {
	total := 0.0
	for _, item := range m.ctrl.All() {
		if item.IsRunning() {
			total += item.CurrentSpeed
		}
	}
	m.SpeedHistory = append(m.SpeedHistory, total/Megabyte)
	if len(m.SpeedHistory) > SpeedHistoryLen {
		m.SpeedHistory = m.SpeedHistory[len(m.SpeedHistory)-SpeedHistoryLen:]
	}
}

func (m *RootModel) clampCursor() {
	n := len(m.ctrl.Records())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// cursorItem returns the record under the cursor
func (m RootModel) cursorItem() (types.DownloadItem, bool) {
	records := m.ctrl.Records()
	if m.cursor < 0 || m.cursor >= len(records) {
		return types.DownloadItem{}, false
	}
	return records[m.cursor], true
}

// =============================================================================
// Keys
// =============================================================================

func (m RootModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case AlertState:
		m.alert = ""
		m.state = DashboardState
		return m, nil

	case SearchState:
		switch {
		case key.Matches(msg, InputKeys.Cancel):
			m.search.SetValue("")
			m.search.Blur()
			m.ctrl.SetSearch("")
			m.state = DashboardState
			m.clampCursor()
			return m, nil
		case key.Matches(msg, InputKeys.Submit):
			m.search.Blur()
			m.state = DashboardState
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.ctrl.SetSearch(m.search.Value())
		m.cursor = 0
		return m, cmd

	case InputState:
		switch {
		case key.Matches(msg, InputKeys.Cancel):
			m.urlInput.Blur()
			m.state = DashboardState
			return m, nil
		case key.Matches(msg, InputKeys.Submit):
			raw := m.urlInput.Value()
			if raw == "" {
				return m, nil
			}
			m.urlInput.Blur()
			m.state = DashboardState
			return m, m.runAdd(raw)
		}
		var cmd tea.Cmd
		m.urlInput, cmd = m.urlInput.Update(msg)
		return m, cmd

	case SettingsState:
		switch {
		case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Settings), key.Matches(msg, m.keys.Quit):
			m.state = DashboardState
		case key.Matches(msg, m.keys.Up):
			if m.SettingsSelectedRow > 0 {
				m.SettingsSelectedRow--
			}
		case key.Matches(msg, m.keys.Down):
			if m.SettingsSelectedRow < settingsRowCount()-1 {
				m.SettingsSelectedRow++
			}
		}
		return m, nil

	case DetailState:
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Details) || key.Matches(msg, m.keys.Quit) {
			m.state = DashboardState
			return m, nil
		}
		if action, ok := m.keys.actionFor(msg); ok {
			return m, m.itemAction(action)
		}
		return m, nil
	}

	return m.handleDashboardKey(msg)
}

func (m RootModel) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.ctrl.Records())-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.PrevPage):
		if m.ctrl.PrevPage() {
			m.cursor = 0
		}
	case key.Matches(msg, m.keys.NextPage):
		if m.ctrl.NextPage() {
			m.cursor = 0
		}
	case key.Matches(msg, m.keys.PageSize):
		size := next(config.PageSizes, m.ctrl.ItemsPerPage())
		m.ctrl.SetItemsPerPage(size)
		m.cursor = 0
		return m, m.saveSetting(config.KeyItemsPerPage, strconv.Itoa(size))

	case key.Matches(msg, m.keys.Select):
		if item, ok := m.cursorItem(); ok {
			m.ctrl.ToggleSelected(item.ID)
		}
	case key.Matches(msg, m.keys.SelectAll):
		m.ctrl.SelectAllDisplayed(m.ctrl.SelectAllState() != view.SelectAll)

	case key.Matches(msg, m.keys.Details):
		if _, ok := m.cursorItem(); ok {
			m.state = DetailState
		}
	case key.Matches(msg, m.keys.Search):
		m.state = SearchState
		cmd := m.search.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Add):
		m.state = InputState
		m.urlInput.SetValue("")
		cmd := m.urlInput.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Settings):
		m.state = SettingsState
		m.SettingsSelectedRow = 0

	case key.Matches(msg, m.keys.Status):
		m.ctrl.SetStatusFilter(next(view.StatusFilters, m.ctrl.Params().Status))
		m.cursor = 0
	case key.Matches(msg, m.keys.Date):
		m.ctrl.SetDateFilter(next(view.DateFilters, m.ctrl.Params().Date))
		m.cursor = 0
	case key.Matches(msg, m.keys.Sort):
		m.ctrl.SetSort(next(sortOrders, m.ctrl.Params().Sort))
		m.clampCursor()

	case key.Matches(msg, m.keys.Refresh):
		m.ctrl.BeginLoad()
		return m, m.fetch()
	case key.Matches(msg, m.keys.ClearDone):
		return m, m.runBulk(types.BulkClearAllFinished)
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Back):
		m.ctrl.ClearSelection()

	default:
		action, ok := m.keys.actionFor(msg)
		if !ok {
			return m, nil
		}
		if len(m.ctrl.Selected()) > 0 && !action.IsLocal() {
			req, ok := m.ctrl.BeginBatch(action)
			if !ok {
				return m, nil
			}
			return m, m.runBatch(req)
		}
		return m, m.itemAction(action)
	}
	return m, nil
}

// itemAction runs an action on the record under the cursor when the record offers it
func (m RootModel) itemAction(action types.Action) tea.Cmd {
	item, ok := m.cursorItem()
	if !ok || !slices.Contains(view.AvailableActions(item), action) {
		return nil
	}
	req, ok := m.ctrl.BeginAction(item.ID, action)
	if !ok {
		return nil
	}
	return m.runAction(req)
}

var sortOrders = []view.SortOrder{
	view.SortStartTimeDesc,
	view.SortStartTimeAsc,
	view.SortFilenameAsc,
	view.SortFilenameDesc,
	view.SortTotalBytesDesc,
	view.SortTotalBytesAsc,
}

// next cycles through values
func next[T comparable](values []T, current T) T {
	i := slices.Index(values, current)
	return values[(i+1)%len(values)]
}
