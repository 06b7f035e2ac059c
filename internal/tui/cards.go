package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/alert-top/internal/alerts"
	"github.com/nixlim/alert-top/internal/filter"
)

// renderSeverityCards renders one card per severity. Counts always cover
// the full canonical set, not the filtered view.
func (m Model) renderSeverityCards(w int) string {
	var counts filter.Counts
	if m.store != nil {
		counts = filter.CountBySeverity(m.store.List())
	}

	sevs := append(append([]alerts.Severity(nil), alerts.Severities...), alerts.SeverityUnknown)
	cardW := w/(len(sevs)+1) - 2
	if cardW < 10 {
		cardW = 10
	}

	cards := make([]string, 0, len(sevs)+1)
	for _, s := range sevs {
		label := fmt.Sprintf("%s %d", severityName(s), counts.Of(s))
		style := cardStyle.BorderForeground(severityColors[s]).Width(cardW)
		if m.criteria.Severity == string(s) {
			style = style.BorderStyle(lipgloss.ThickBorder())
		}
		cards = append(cards, style.Render(severityStyle(s).Render(label)))
	}
	cards = append(cards, cardStyle.BorderForeground(lipgloss.Color("240")).Width(cardW).
		Render(fmt.Sprintf("Total %d", counts.Total())))

	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func severityName(s alerts.Severity) string {
	switch s {
	case alerts.SeverityCritical:
		return "Critical"
	case alerts.SeverityHigh:
		return "High"
	case alerts.SeverityMedium:
		return "Medium"
	case alerts.SeverityLow:
		return "Low"
	default:
		return "Unknown"
	}
}
