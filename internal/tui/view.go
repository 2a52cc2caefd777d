package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/view"
)

const logoText = `
██   ██  ██████  ██████  ███    ███
███  ██ ██       ██   ██ ████  ████
██ █ ██ ██   ███ ██   ██ ██ ████ ██
██  ███ ██    ██ ██   ██ ██  ██  ██
██   ██  ██████  ██████  ██      ██`

func (m RootModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	// === Handle Modal States First ===

	switch m.state {
	case InputState:
		labelStyle := lipgloss.NewStyle().Width(10).Foreground(m.styles.Theme.Subtext)
		content := lipgloss.JoinVertical(lipgloss.Left,
			"",
			lipgloss.JoinHorizontal(lipgloss.Left, labelStyle.Render("URL:"), m.urlInput.View()),
			"",
			m.help.View(InputKeys),
		)
		paddedContent := lipgloss.NewStyle().Padding(0, 2).Render(content)
		box := m.renderBtopBox("Add Download", paddedContent, 72, 7, m.styles.Theme.Secondary, false)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)

	case AlertState:
		content := lipgloss.JoinVertical(lipgloss.Center,
			lipgloss.NewStyle().Foreground(m.styles.Theme.Error).Bold(true).Render("⚠ ERROR"),
			"",
			lipgloss.NewStyle().Foreground(m.styles.Theme.Text).Width(min(60, m.width-10)).Render(m.alert),
			"",
			m.styles.Dim.Render("Press any key to continue"),
		)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.styles.Alert.Render(content))

	case DetailState:
		if item, ok := m.cursorItem(); ok {
			w := min(80, m.width-4)
			box := m.renderBtopBox("File Details", m.renderFocusedDetails(item, w-4), w, min(22, m.height-2), m.styles.Theme.Primary, false)
			return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
		}

	case SettingsState:
		return m.viewSettings()
	}

	// === MAIN DASHBOARD LAYOUT ===

	availableWidth := m.width - 2
	availableHeight := m.height - 2

	showGraph := availableWidth >= 100
	leftWidth := availableWidth
	rightWidth := 0
	if showGraph {
		leftWidth = int(float64(availableWidth) * ListWidthRatio)
		rightWidth = availableWidth - leftWidth
	}

	// --- HEADER ---
	stats := lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Value.Render(m.ctrl.Summary()),
		m.renderFilterLine(),
	)
	header := lipgloss.NewStyle().
		Width(leftWidth).
		Height(HeaderHeight).
		Padding(0, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, m.styles.Logo.Render(logoText), "", stats))

	if showGraph {
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, m.renderGraphBox(rightWidth, HeaderHeight))
	}

	// --- DOWNLOAD LIST ---
	listHeight := max(availableHeight-HeaderHeight-1, MinListHeight)
	listInner := lipgloss.NewStyle().Padding(0, 1).Render(m.renderList(availableWidth-4, listHeight-2))
	listBox := m.renderBtopBox("Downloads", listInner, availableWidth, listHeight, m.styles.Theme.Secondary, true)

	// --- FOOTER ---
	var footer string
	switch {
	case m.state == SearchState:
		footer = m.styles.Footer.Render(m.search.View())
	case m.notice != "":
		footer = lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, m.styles.Notice.Render(m.notice))
	default:
		footer = m.styles.Footer.Render(m.help.View(m.keys))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, listBox, footer)
}

func (m RootModel) renderFilterLine() string {
	p := m.ctrl.Params()
	parts := []string{
		m.styles.Dim.Render("Date: ") + m.styles.Filter.Render(string(p.Date)),
		m.styles.Dim.Render("Sort: ") + m.styles.Filter.Render(string(p.Sort)),
	}
	if p.Search != "" {
		parts = append(parts, m.styles.Dim.Render("Search: ")+m.styles.Filter.Render(p.Search))
	}
	if n := len(m.ctrl.Selected()); n > 0 {
		parts = append(parts, m.styles.Notice.Render(fmt.Sprintf("%d selected", n)))
	}
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func (m RootModel) renderGraphBox(width, height int) string {
	axisWidth := 6
	graphWidth := max(width-axisWidth-5, 10)
	graphHeight := max(height-4, 1)

	maxSpeed := 1.0
	for _, v := range m.SpeedHistory {
		maxSpeed = max(maxSpeed, v)
	}
	maxSpeed *= 1.1

	graph := renderMultiLineGraph(m.SpeedHistory, graphWidth, graphHeight, maxSpeed, m.styles.Theme.Secondary, m.styles.Theme.Border)

	axisStyle := lipgloss.NewStyle().Width(axisWidth).Foreground(m.styles.Theme.Subtext).Align(lipgloss.Right)
	axis := lipgloss.JoinVertical(lipgloss.Right,
		axisStyle.Render(fmt.Sprintf("%.1f", maxSpeed)),
		strings.Repeat("\n", max(graphHeight-2, 0)),
		axisStyle.Render("0"),
	)

	current := 0.0
	if len(m.SpeedHistory) > 0 {
		current = m.SpeedHistory[len(m.SpeedHistory)-1]
	}
	title := lipgloss.NewStyle().
		Width(width - 4).
		Align(lipgloss.Right).
		Foreground(m.styles.Theme.Secondary).
		Bold(true).
		Render(fmt.Sprintf("%.2f MB/s", current))

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		lipgloss.JoinHorizontal(lipgloss.Top, axis, lipgloss.NewStyle().MarginLeft(1).Render(graph)),
	)
	return m.renderBtopBox("Network Activity", content, width, height, m.styles.Theme.Accent, false)
}

func (m RootModel) renderList(width, height int) string {
	tabs := m.renderTabs()
	pageInfo := m.styles.Dim.Render(m.ctrl.PageInfo())
	selectAll := map[view.SelectState]string{view.SelectNone: "[ ]", view.SelectPartial: "[-]", view.SelectAll: "[x]"}[m.ctrl.SelectAllState()]
	top := lipgloss.JoinHorizontal(lipgloss.Top, m.styles.Dim.Render(selectAll+" "), tabs)

	if placeholder := m.ctrl.Placeholder(); placeholder != "" {
		body := lipgloss.Place(width, max(height-3, 1), lipgloss.Center, lipgloss.Center, m.styles.Placeholder.Render(placeholder))
		return lipgloss.JoinVertical(lipgloss.Left, top, "", body, pageInfo)
	}

	var rows []string
	for i, d := range m.ctrl.Displayed() {
		rows = append(rows, m.renderRow(d, i == m.cursor, width))
	}
	body := lipgloss.NewStyle().MaxHeight(max(height-3, 1)).Render(strings.Join(rows, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, top, "", body, pageInfo)
}

func (m RootModel) renderRow(d view.DisplayedItem, cursor bool, width int) string {
	pointer := "  "
	nameStyle := m.styles.Row
	if cursor {
		pointer = "> "
		nameStyle = m.styles.CursorRow
	}
	check := "[ ]"
	if d.Selected {
		check = "[x]"
	}

	first := nameStyle.Render(pointer+check+" "+iconGlyph(d.Icon)+" ") +
		nameStyle.Render(truncateString(d.Filename, max(width-12, 10)))

	var meta []string
	for _, s := range []string{d.Size, d.Speed, d.ETA, d.Date} {
		if s != "" {
			meta = append(meta, s)
		}
	}
	second := "      " + m.styles.Status(d.StatusClass).Render(truncateString(d.Status, 28))
	if d.ShowProgress {
		second += "  " + m.progress.ViewAs(d.Progress/100)
	}
	second += "  " + m.styles.Dim.Render(strings.Join(meta, " · "))

	lines := []string{first, second}
	if d.Message != nil {
		lines = append(lines, "      "+m.styles.Message(d.Message.Kind).Render(d.Message.Text))
	}
	return strings.Join(lines, "\n")
}

// renderTabs draws the status filters with their counts over the whole cache
func (m RootModel) renderTabs() string {
	counts := make(map[view.StatusFilter]int)
	all := m.ctrl.All()
	for _, f := range view.StatusFilters {
		p := view.Params{Status: f}
		counts[f] = len(view.FilterAndSort(all, p, m.now()))
	}

	current := m.ctrl.Params().Status
	var rendered []string
	for _, f := range view.StatusFilters {
		style := m.styles.Tab
		if f == current {
			style = m.styles.ActiveTab
		}
		rendered = append(rendered, style.Render(fmt.Sprintf("%s (%d)", statusLabel(f), counts[f])))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func statusLabel(f view.StatusFilter) string {
	switch f {
	case view.StatusActive:
		return "Active"
	case view.StatusInProgress:
		return "Downloading"
	case view.StatusPaused:
		return "Paused"
	case view.StatusInterrupted:
		return "Failed"
	case view.StatusComplete:
		return "Done"
	default:
		return "All"
	}
}

// Helper to render the detailed info pane
func (m RootModel) renderFocusedDetails(item types.DownloadItem, w int) string {
	d := view.Project(item, m.now())
	contentWidth := max(w-6, 20)

	divider := m.styles.Dim.Render(strings.Repeat("─", contentWidth))
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Left, m.styles.Label.Render(label), m.styles.Value.Render(truncateString(value, contentWidth-14)))
	}

	fileInfo := []string{
		row("Filename:", d.Filename),
		lipgloss.JoinHorizontal(lipgloss.Left, m.styles.Label.Render("Status:"), m.styles.Status(d.StatusClass).Render(d.Status)),
		row("Size:", d.Size),
	}
	if d.Speed != "" {
		fileInfo = append(fileInfo, row("Speed:", d.Speed))
	}
	if d.ETA != "" {
		fileInfo = append(fileInfo, row("Remaining:", d.ETA))
	}
	if d.Date != "" {
		fileInfo = append(fileInfo, row("Started:", d.Date))
	}

	bar := m.progress
	bar.Width = max(contentWidth-8, 10)
	progressSection := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Foreground(m.styles.Theme.Accent).Bold(true).Render(fmt.Sprintf("Progress %.0f%%", d.Progress)),
		lipgloss.NewStyle().MarginLeft(1).Render(bar.ViewAs(d.Progress/100)),
	)

	urls := []string{row("URL:", item.URL)}
	if item.FinalURL != "" && item.FinalURL != item.URL {
		urls = append(urls, row("Final URL:", item.FinalURL))
	}
	if item.Error != "" {
		urls = append(urls, row("Error:", item.Error))
	}

	var actions []string
	for _, a := range d.Actions {
		actions = append(actions, actionHint(a))
	}

	sections := []string{
		"",
		lipgloss.JoinVertical(lipgloss.Left, fileInfo...),
		divider,
		progressSection,
		divider,
		lipgloss.JoinVertical(lipgloss.Left, urls...),
		divider,
		m.styles.Dim.Width(contentWidth).Render(strings.Join(actions, "  ")),
	}
	if d.Message != nil {
		sections = append(sections, m.styles.Message(d.Message.Kind).Render(d.Message.Text))
	}

	return lipgloss.NewStyle().
		Padding(0, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func actionHint(a types.Action) string {
	bindings := map[types.Action]string{
		types.ActionPause:          Keys.Pause.Help().Key,
		types.ActionResume:         Keys.Resume.Help().Key,
		types.ActionCancel:         Keys.Cancel.Help().Key,
		types.ActionOpen:           Keys.Open.Help().Key,
		types.ActionShow:           Keys.Show.Help().Key,
		types.ActionRetry:          Keys.Retry.Help().Key,
		types.ActionClear:          Keys.Clear.Help().Key,
		types.ActionCopyLink:       Keys.CopyLink.Help().Key,
		types.ActionCopySourceLink: Keys.CopySource.Help().Key,
		types.ActionSaveAs:         Keys.SaveAs.Help().Key,
		types.ActionShowError:      Keys.ShowError.Help().Key,
	}
	return fmt.Sprintf("[%s] %s", bindings[a], a)
}

func truncateString(s string, i int) string {
	runes := []rune(s)
	if i > 3 && len(runes) > i {
		return string(runes[:i-3]) + "..."
	}
	return s
}

// renderBtopBox creates a btop-style box with title embedded in the top border
// titleRight: if true, title appears on the right side; if false, title appears on the left
// Example (left):  ╭─ TITLE ─────────────────────────────────╮
// Example (right): ╭─────────────────────────────────── TITLE ─╮
func (m RootModel) renderBtopBox(title string, content string, width, height int, borderColor lipgloss.Color, titleRight bool) string {
	const (
		topLeft     = "╭"
		topRight    = "╮"
		bottomLeft  = "╰"
		bottomRight = "╯"
		horizontal  = "─"
		vertical    = "│"
	)

	innerWidth := max(width-2, 1)

	titleText := fmt.Sprintf(" %s ", title)
	remainingWidth := max(innerWidth-lipgloss.Width(titleText)-1, 0)

	border := lipgloss.NewStyle().Foreground(borderColor)
	titleStyle := lipgloss.NewStyle().Foreground(m.styles.Theme.Accent).Bold(true)

	var topBorder string
	if titleRight {
		topBorder = border.Render(topLeft+strings.Repeat(horizontal, remainingWidth)) +
			titleStyle.Render(titleText) +
			border.Render(horizontal+topRight)
	} else {
		topBorder = border.Render(topLeft+horizontal) +
			titleStyle.Render(titleText) +
			border.Render(strings.Repeat(horizontal, remainingWidth)+topRight)
	}

	bottomBorder := border.Render(bottomLeft + strings.Repeat(horizontal, innerWidth) + bottomRight)

	contentLines := strings.Split(content, "\n")
	innerHeight := max(height-2, 1)

	wrappedLines := make([]string, 0, innerHeight)
	for i := 0; i < innerHeight; i++ {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		lineWidth := lipgloss.Width(line)
		if lineWidth < innerWidth {
			line += strings.Repeat(" ", innerWidth-lineWidth)
		} else if lineWidth > innerWidth {
			line = lipgloss.NewStyle().MaxWidth(innerWidth).Render(line)
		}
		wrappedLines = append(wrappedLines, border.Render(vertical)+line+border.Render(vertical))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		topBorder,
		strings.Join(wrappedLines, "\n"),
		bottomBorder,
	)
}
