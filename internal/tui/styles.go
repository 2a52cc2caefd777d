package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/view"
)

// Theme is the color palette of the popup
type Theme struct {
	Name      string
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Text      lipgloss.Color
	Subtext   lipgloss.Color
	Border    lipgloss.Color
}

var (
	// Dracula
	DarkTheme = Theme{
		Name:      config.ThemeDark,
		Primary:   lipgloss.Color("#bd93f9"), // Purple
		Secondary: lipgloss.Color("#ff79c6"), // Pink
		Accent:    lipgloss.Color("#8be9fd"), // Cyan
		Success:   lipgloss.Color("#50fa7b"),
		Error:     lipgloss.Color("#ff5555"),
		Warning:   lipgloss.Color("#ffb86c"),
		Text:      lipgloss.Color("#f8f8f2"),
		Subtext:   lipgloss.Color("#6272a4"),
		Border:    lipgloss.Color("#44475a"),
	}

	// Alucard
	LightTheme = Theme{
		Name:      config.ThemeLight,
		Primary:   lipgloss.Color("#644ac9"),
		Secondary: lipgloss.Color("#a3144d"),
		Accent:    lipgloss.Color("#036a96"),
		Success:   lipgloss.Color("#14710a"),
		Error:     lipgloss.Color("#cb3a2a"),
		Warning:   lipgloss.Color("#a34d14"),
		Text:      lipgloss.Color("#1f1f1f"),
		Subtext:   lipgloss.Color("#6c664b"),
		Border:    lipgloss.Color("#cfcfde"),
	}
)

// hasDarkBackground is swapped in tests
var hasDarkBackground = termenv.HasDarkBackground

// ResolveTheme maps a theme setting to a palette. "system" asks the terminal.
func ResolveTheme(name string) Theme {
	switch name {
	case config.ThemeLight:
		return LightTheme
	case config.ThemeDark:
		return DarkTheme
	default:
		if hasDarkBackground() {
			return DarkTheme
		}
		return LightTheme
	}
}

// Styles are the lipgloss styles derived from a Theme
type Styles struct {
	Theme Theme

	Logo        lipgloss.Style
	Stats       lipgloss.Style
	Filter      lipgloss.Style
	ActiveTab   lipgloss.Style
	Tab         lipgloss.Style
	Row         lipgloss.Style
	CursorRow   lipgloss.Style
	Dim         lipgloss.Style
	Label       lipgloss.Style
	Value       lipgloss.Style
	Footer      lipgloss.Style
	Notice      lipgloss.Style
	Alert       lipgloss.Style
	Placeholder lipgloss.Style

	status   map[string]lipgloss.Style
	messages map[view.MessageKind]lipgloss.Style
}

// NewStyles builds every style from one palette
func NewStyles(t Theme) Styles {
	return Styles{
		Theme: t,

		Logo: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		Stats: lipgloss.NewStyle().
			Foreground(t.Subtext).
			Padding(DefaultPaddingY, DefaultPaddingX),

		Filter: lipgloss.NewStyle().
			Foreground(t.Accent),

		ActiveTab: lipgloss.NewStyle().
			Foreground(t.Secondary).
			Bold(true).
			Underline(true).
			Padding(0, 1),

		Tab: lipgloss.NewStyle().
			Foreground(t.Subtext).
			Padding(0, 1),

		Row: lipgloss.NewStyle().
			Foreground(t.Text),

		CursorRow: lipgloss.NewStyle().
			Foreground(t.Secondary).
			Bold(true),

		Dim: lipgloss.NewStyle().
			Foreground(t.Subtext),

		Label: lipgloss.NewStyle().
			Foreground(t.Subtext).
			Width(12),

		Value: lipgloss.NewStyle().
			Foreground(t.Text).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(t.Subtext).
			Padding(0, 1),

		Notice: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true),

		Alert: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(t.Error).
			Padding(1, 3),

		Placeholder: lipgloss.NewStyle().
			Foreground(t.Accent),

		status: map[string]lipgloss.Style{
			"in_progress": lipgloss.NewStyle().Foreground(t.Accent),
			"paused":      lipgloss.NewStyle().Foreground(t.Warning),
			"complete":    lipgloss.NewStyle().Foreground(t.Success),
			"interrupted": lipgloss.NewStyle().Foreground(t.Error),
		},
		messages: map[view.MessageKind]lipgloss.Style{
			view.MessageInfo:    lipgloss.NewStyle().Foreground(t.Accent).Italic(true),
			view.MessageSuccess: lipgloss.NewStyle().Foreground(t.Success).Italic(true),
			view.MessageError:   lipgloss.NewStyle().Foreground(t.Error).Italic(true),
		},
	}
}

// Status returns the style for a status class
func (s Styles) Status(class string) lipgloss.Style {
	if st, ok := s.status[class]; ok {
		return st
	}
	return s.Row
}

// Message returns the style for a message kind
func (s Styles) Message(kind view.MessageKind) lipgloss.Style {
	if st, ok := s.messages[kind]; ok {
		return st
	}
	return s.Dim
}

var iconGlyphs = map[string]string{
	view.IconArchive:     "▤",
	view.IconText:        "▦",
	view.IconSpreadsheet: "▥",
	view.IconSlides:      "▧",
	view.IconImage:       "◩",
	view.IconMusic:       "♫",
	view.IconFilm:        "▶",
	view.IconTerminal:    "❯",
	view.IconPackage:     "◫",
	view.IconDisc:        "◎",
	view.IconFile:        "□",
}

func iconGlyph(key string) string {
	if g, ok := iconGlyphs[key]; ok {
		return g
	}
	return iconGlyphs[view.IconFile]
}
