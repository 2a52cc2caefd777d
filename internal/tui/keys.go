package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
)

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	PrevPage  key.Binding
	NextPage  key.Binding
	PageSize  key.Binding
	Select    key.Binding
	SelectAll key.Binding
	Details   key.Binding
	Search    key.Binding
	Add       key.Binding
	Status    key.Binding
	Date      key.Binding
	Sort      key.Binding
	Refresh   key.Binding
	ClearDone key.Binding
	Settings  key.Binding
	Help      key.Binding
	Back      key.Binding
	Quit      key.Binding

	// per-item actions; they apply to the selection when one exists
	Pause      key.Binding
	Resume     key.Binding
	Cancel     key.Binding
	Open       key.Binding
	Show       key.Binding
	Retry      key.Binding
	Clear      key.Binding
	CopyLink   key.Binding
	CopySource key.Binding
	SaveAs     key.Binding
	ShowError  key.Binding
}

var Keys = keyMap{
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	PrevPage:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev page")),
	NextPage:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next page")),
	PageSize:  key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "items per page")),
	Select:    key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "select")),
	SelectAll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select page")),
	Details:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Add:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new download")),
	Status:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "status filter")),
	Date:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "date filter")),
	Sort:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "sort")),
	Refresh:   key.NewBinding(key.WithKeys("ctrl+r", "f5"), key.WithHelp("ctrl+r", "refresh")),
	ClearDone: key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "clear finished")),
	Settings:  key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "settings")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

	Pause:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
	Resume:     key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "resume")),
	Cancel:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel")),
	Open:       key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
	Show:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "show in folder")),
	Retry:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
	Clear:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear")),
	CopyLink:   key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy link")),
	CopySource: key.NewBinding(key.WithKeys("Y"), key.WithHelp("Y", "copy source link")),
	SaveAs:     key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "save as")),
	ShowError:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "show error")),
}

// actionFor maps an action key to its action
func (k keyMap) actionFor(msg tea.KeyMsg) (types.Action, bool) {
	bindings := []struct {
		b key.Binding
		a types.Action
	}{
		{k.Pause, types.ActionPause},
		{k.Resume, types.ActionResume},
		{k.Cancel, types.ActionCancel},
		{k.Open, types.ActionOpen},
		{k.Show, types.ActionShow},
		{k.Retry, types.ActionRetry},
		{k.Clear, types.ActionClear},
		{k.CopyLink, types.ActionCopyLink},
		{k.CopySource, types.ActionCopySourceLink},
		{k.SaveAs, types.ActionSaveAs},
		{k.ShowError, types.ActionShowError},
	}
	for _, kb := range bindings {
		if key.Matches(msg, kb.b) {
			return kb.a, true
		}
	}
	return "", false
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Details, k.Search, k.Add, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PrevPage, k.NextPage, k.Select, k.SelectAll},
		{k.Search, k.Status, k.Date, k.Sort, k.PageSize, k.Refresh, k.Settings},
		{k.Pause, k.Resume, k.Cancel, k.Retry, k.Clear, k.ClearDone},
		{k.Open, k.Show, k.CopyLink, k.CopySource, k.SaveAs, k.ShowError},
		{k.Add, k.Details, k.Back, k.Help, k.Quit},
	}
}

type inputKeyMap struct {
	Submit key.Binding
	Cancel key.Binding
}

// InputKeys are shown under text inputs
var InputKeys = inputKeyMap{
	Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
	Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
}

func (k inputKeyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Submit, k.Cancel} }
func (k inputKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }
