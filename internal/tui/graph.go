package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderMultiLineGraph creates a multi-line bar graph with grid lines.
// data: speed history in MB/s, oldest first
// width, height: dimensions of the graph
// maxVal: maximum value for scaling
func renderMultiLineGraph(data []float64, width, height int, maxVal float64, color, grid lipgloss.Color) string {
	if width < 1 || height < 1 {
		return ""
	}
	if maxVal <= 0 {
		maxVal = 1
	}

	gridStyle := lipgloss.NewStyle().Foreground(grid)
	barStyle := lipgloss.NewStyle().Foreground(color)

	rows := make([][]string, height)
	for i := range rows {
		rows[i] = make([]string, width)
		for j := range rows[i] {
			if i%2 == 0 {
				rows[i][j] = gridStyle.Render("╌")
			} else {
				rows[i][j] = " "
			}
		}
	}

	// newest sample on the right; the grid shows through where history is short
	visible := data
	if len(data) > width {
		visible = data[len(data)-width:]
	}
	offset := width - len(visible)

	blocks := []string{" ", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

	for x, val := range visible {
		pct := min(max(val, 0)/maxVal, 1.0)
		subBlocks := pct * float64(height) * 8.0

		for y := 0; y < height; y++ {
			rowValue := subBlocks - float64(y*8)
			if rowValue <= 0 {
				continue
			}
			char := "█"
			if rowValue < 8 {
				char = blocks[int(rowValue)]
			}
			rows[height-1-y][offset+x] = barStyle.Render(char)
		}
	}

	var s strings.Builder
	for i, row := range rows {
		s.WriteString(strings.Join(row, ""))
		if i < height-1 {
			s.WriteRune('\n')
		}
	}
	return s.String()
}
