package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/utils"
	"github.com/modcoretech/NG-Download-Manager/internal/view"
)

type UIState int

const (
	DashboardState UIState = iota
	SearchState
	InputState
	DetailState
	SettingsState
	AlertState
)

// Backend is the relay connection used by the popup. *channel.Client implements it.
type Backend interface {
	view.Backend
	GetSettings(ctx context.Context) (*config.Settings, error)
	UpdateSetting(ctx context.Context, key, value string) (*config.Settings, error)
	Subscribe(ctx context.Context) (<-chan any, error)
}

// Options configures the popup model
type Options struct {
	Backend Backend
	Copier  view.Copier
	Logger  *slog.Logger
	Now     func() time.Time
}

type RootModel struct {
	ctx     context.Context
	backend Backend
	copier  view.Copier
	logger  *slog.Logger
	now     func() time.Time

	ctrl     *view.Controller
	settings *config.Settings
	styles   Styles
	keys     keyMap
	help     help.Model
	progress progress.Model

	search   textinput.Model
	urlInput textinput.Model

	state  UIState
	cursor int
	width  int
	height int

	alert       string
	notice      string
	noticeUntil time.Time

	pushes       <-chan any
	SpeedHistory []float64

	SettingsSelectedRow int
}

// InitialRootModel builds the popup. ctx bounds every request and the push subscription.
func InitialRootModel(ctx context.Context, opts Options) RootModel {
	if opts.Logger == nil {
		opts.Logger = utils.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	search := textinput.New()
	search.Placeholder = "filename or URL"
	search.Width = InputWidth
	search.Prompt = "/ "

	urlInput := textinput.New()
	urlInput.Placeholder = "https://example.com/file.zip"
	urlInput.Width = InputWidth
	urlInput.Prompt = ""

	settings := config.DefaultSettings()
	m := RootModel{
		ctx:      ctx,
		backend:  opts.Backend,
		copier:   opts.Copier,
		logger:   opts.Logger,
		now:      opts.Now,
		ctrl:     view.NewController(view.Options{ItemsPerPage: settings.ItemsPerPage, Now: opts.Now}),
		settings: settings,
		keys:     Keys,
		help:     help.New(),
		search:   search,
		urlInput: urlInput,
		state:    DashboardState,
	}
	m.applyTheme(ResolveTheme(settings.Theme))
	return m
}

func (m *RootModel) applyTheme(t Theme) {
	m.styles = NewStyles(t)
	m.progress = progress.New(
		progress.WithSolidFill(string(t.Success)),
		progress.WithoutPercentage(),
		progress.WithWidth(ProgressBarWidth),
	)
}

// Controller exposes the view state, mainly for tests
func (m RootModel) Controller() *view.Controller { return m.ctrl }

func (m RootModel) Init() tea.Cmd {
	m.ctrl.BeginLoad()
	return tea.Batch(
		m.loadSettings(),
		m.fetch(),
		m.subscribe(),
		tick(),
	)
}

// =============================================================================
// Messages
// =============================================================================

type settingsMsg struct {
	settings *config.Settings
	err      error
}

type settingSavedMsg struct {
	key      string
	settings *config.Settings
	err      error
}

type snapshotMsg struct {
	items []types.DownloadItem
	err   error
}

type subscribedMsg struct {
	ch  <-chan any
	err error
}

type pushMsg struct{ msg any }

type streamClosedMsg struct{}

type actionDoneMsg struct {
	req view.ActionRequest
	err error
}

type batchDoneMsg struct {
	req view.BatchRequest
	res types.BatchResult
	err error
}

type bulkDoneMsg struct{ err error }

type addDoneMsg struct {
	id  int
	err error
}

type tickMsg time.Time

// =============================================================================
// Commands
// =============================================================================

func (m RootModel) requestCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, RequestTimeout)
}

func (m RootModel) loadSettings() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestCtx()
		defer cancel()
		s, err := m.backend.GetSettings(ctx)
		return settingsMsg{settings: s, err: err}
	}
}

func (m RootModel) saveSetting(key, value string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestCtx()
		defer cancel()
		s, err := m.backend.UpdateSetting(ctx, key, value)
		return settingSavedMsg{key: key, settings: s, err: err}
	}
}

func (m RootModel) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestCtx()
		defer cancel()
		items, err := m.backend.GetDownloads(ctx)
		return snapshotMsg{items: items, err: err}
	}
}

func (m RootModel) subscribe() tea.Cmd {
	return func() tea.Msg {
		ch, err := m.backend.Subscribe(m.ctx)
		return subscribedMsg{ch: ch, err: err}
	}
}

func listenForActivity(sub <-chan any) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-sub
		if !ok {
			return streamClosedMsg{}
		}
		return pushMsg{msg: msg}
	}
}

func tick() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m RootModel) runAction(req view.ActionRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestCtx()
		defer cancel()
		return actionDoneMsg{req: req, err: view.RunAction(ctx, m.backend, m.copier, req)}
	}
}

func (m RootModel) runBatch(req view.BatchRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestCtx()
		defer cancel()
		res, err := view.RunBatch(ctx, m.backend, req)
		return batchDoneMsg{req: req, res: res, err: err}
	}
}

func (m RootModel) runBulk(action types.BulkAction) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestCtx()
		defer cancel()
		return bulkDoneMsg{err: m.backend.PerformBulkAction(ctx, action)}
	}
}

func (m RootModel) runAdd(rawURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestCtx()
		defer cancel()
		id, err := view.StartDownload(ctx, m.backend, rawURL)
		return addDoneMsg{id: id, err: err}
	}
}
