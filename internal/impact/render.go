package impact

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// levelColors distinguishes positions in the hierarchy by niveau, mirroring the
// per-level colors of the web view; levels beyond the palette reuse the last color
var levelColors = []lipgloss.Color{
	lipgloss.Color("#C0392B"),
	lipgloss.Color("#D35400"),
	lipgloss.Color("#B7950B"),
	lipgloss.Color("#1E8449"),
	lipgloss.Color("#117A65"),
	lipgloss.Color("#2471A3"),
	lipgloss.Color("#7D3C98"),
}

var (
	branchStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	indicatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0"))
	headerStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C")).Bold(true)
)

func levelStyle(niveau int) lipgloss.Style {
	if niveau < 0 {
		niveau = 0
	}
	if niveau >= len(levelColors) {
		niveau = len(levelColors) - 1
	}
	return lipgloss.NewStyle().Foreground(levelColors[niveau]).Bold(niveau == 0)
}

// RenderText draws a view as an indented tree for a terminal, one visible node per line
func RenderText(view View) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Chaîne d'impact · église %s · %d membres", view.ChurchID, view.TotalNodes)))
	b.WriteString("\n")

	if view.Error != "" {
		b.WriteString(errorStyle.Render(view.Error))
		b.WriteString("\n")
	}
	for _, row := range Flatten(view.Tree) {
		b.WriteString(branchStyle.Render(row.Prefix))
		b.WriteString(indicatorStyle.Render(row.Indicator))
		b.WriteString(" ")
		b.WriteString(levelStyle(row.Niveau).Render(row.Username))
		b.WriteString(branchStyle.Render(fmt.Sprintf(" [niveau %d]", row.Niveau)))
		b.WriteString("\n")
	}
	return b.String()
}
