package viz

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/san-kum/bioreact/internal/storage"
)

var summaryHeaders = []string{"#", "scenario", "status", "X", "S", "P", "V", "peak X", "yield", "balance", "steps", "note"}

// SummaryTable renders one row per scenario with its end state and
// mass-balance diagnostics.
func SummaryTable(records []storage.ScenarioRecord) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		s := r.Summary
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.Index),
			r.Scenario.Label(),
			r.Status.String(),
			fmt.Sprintf("%.4g", s.FinalX),
			fmt.Sprintf("%.4g", s.FinalS),
			fmt.Sprintf("%.4g", s.FinalP),
			fmt.Sprintf("%.4g", s.FinalV),
			fmt.Sprintf("%.4g@%.3gh", s.PeakX, s.PeakXTime),
			fmt.Sprintf("%.3f", s.ObservedYield),
			fmt.Sprintf("%.1e", s.BalanceError),
			fmt.Sprintf("%d/%d", r.Steps, r.Rejected),
			truncate(r.Error, 40),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Subtle).
		Headers(summaryHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return base.Inherit(HeaderStyle)
			case col == 2 && row < len(records):
				return base.Inherit(StatusStyle(records[row].Status))
			case col >= 3 && col <= 9:
				return base.Inherit(MetricValue)
			}
			return base
		})
	return t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
