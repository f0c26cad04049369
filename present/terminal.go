package present

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
)

var (
	toneColors = map[Tone]lipgloss.Color{
		ToneInfo:    lipgloss.Color("#5B8DEF"),
		ToneDanger:  lipgloss.Color("#FF6B6B"),
		ToneWarning: lipgloss.Color("#F7B801"),
		ToneSuccess: lipgloss.Color("#4CAF50"),
	}
	titleStyle   = lipgloss.NewStyle().Bold(true)
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(100)
)

// Terminal writes the view as bordered panels followed by a summary table.
func Terminal(w io.Writer, v View) error {
	if v.Message != "" {
		if _, err := fmt.Fprintln(w, messageStyle.Render(v.Message)); err != nil {
			return err
		}
	}
	for _, p := range v.Panels {
		color := toneColors[p.Tone]
		body := titleStyle.Foreground(color).Render(p.Title) + "\n\n" + p.Text
		if _, err := fmt.Fprintln(w, panelStyle.BorderForeground(color).Render(body)); err != nil {
			return err
		}
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Run", "Case", "Status", "Stages"})
	tw.AppendRow(table.Row{v.RunID, v.CaseID, v.Status, len(v.Panels)})
	tw.Render()
	return nil
}
