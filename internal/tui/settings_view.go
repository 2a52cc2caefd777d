package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/modcoretech/NG-Download-Manager/internal/config"
)

func settingsRowCount() int {
	return len(config.GetSettingsMetadata())
}

// viewSettings renders the Btop-style settings page. Settings are read-only here;
// `ngdm settings set` edits them.
func (m RootModel) viewSettings() string {
	width := 70
	height := 16
	if m.width < width+4 {
		width = m.width - 4
	}
	if m.height < height+4 {
		height = m.height - 4
	}

	metadata := config.GetSettingsMetadata()
	leftWidth := 24
	rightWidth := width - leftWidth - 5

	// === LEFT COLUMN: Settings List (names only) ===
	listLines := make([]string, 0, len(metadata))
	for i, meta := range metadata {
		if i == m.SettingsSelectedRow {
			listLines = append(listLines, m.styles.CursorRow.Render("> "+meta.Label))
		} else {
			listLines = append(listLines, m.styles.Dim.Render("  "+meta.Label))
		}
	}
	listBox := lipgloss.NewStyle().
		Width(leftWidth).
		Render(lipgloss.JoinVertical(lipgloss.Left, listLines...))

	// === VERTICAL SEPARATOR ===
	separator := m.styles.Dim.Render(strings.TrimSuffix(strings.Repeat("│\n", len(metadata)), "\n"))

	// === RIGHT COLUMN: Value + Description ===
	var rightContent string
	if m.SettingsSelectedRow < len(metadata) {
		meta := metadata[m.SettingsSelectedRow]
		value, err := m.settings.Get(meta.Key)
		if err != nil {
			value = "-"
		}

		valueDisplay := lipgloss.NewStyle().
			Foreground(m.styles.Theme.Accent).
			Bold(true).
			Render("Value: " + formatSettingValue(value, meta.Type))

		descDisplay := m.styles.Dim.
			Width(rightWidth - 2).
			Render(meta.Description)

		rightContent = valueDisplay + "\n\n" + descDisplay
	}
	rightBox := lipgloss.NewStyle().
		Width(rightWidth).
		PaddingLeft(1).
		Render(rightContent)

	content := lipgloss.JoinHorizontal(lipgloss.Top, listBox, separator, rightBox)

	helpText := m.styles.Dim.Render("Edit with: ngdm settings set <key> <value>   [Esc] Back")

	fullContent := lipgloss.NewStyle().Padding(0, 1).Render(lipgloss.JoinVertical(lipgloss.Left,
		"",
		content,
		"",
		helpText,
	))

	box := m.renderBtopBox("Settings", fullContent, width, height, m.styles.Theme.Secondary, false)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// formatSettingValue formats a setting value for display
func formatSettingValue(value, typ string) string {
	switch typ {
	case "bool":
		if b, err := strconv.ParseBool(value); err == nil {
			if b {
				return "True"
			}
			return "False"
		}
	case "string":
		if value == "" {
			return "(none)"
		}
		if len(value) > 30 {
			return value[:27] + "..."
		}
	}
	return value
}
