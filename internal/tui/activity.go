package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/alert-top/internal/events"
)

// kindIcons maps activity kinds to their display icons.
var kindIcons = map[events.Kind]string{
	events.KindPush:   "WS",
	events.KindPoll:   "PL",
	events.KindNotify: "!!",
	events.KindSocket: "<>",
	events.KindDelete: "DL",
	events.KindError:  "ER",
}

// kindStyles maps activity kinds to their display styles.
var kindStyles = map[events.Kind]lipgloss.Style{
	events.KindPush:   lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
	events.KindPoll:   lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
	events.KindNotify: lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
	events.KindSocket: lipgloss.NewStyle().Foreground(lipgloss.Color("183")),
	events.KindDelete: lipgloss.NewStyle().Foreground(lipgloss.Color("222")),
	events.KindError:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
}

// renderActivityPanel renders the most recent activity, newest at the
// bottom.
func (m Model) renderActivityPanel(w, h int) string {
	contentW := w - 4
	if contentW < 10 {
		contentW = 10
	}
	visibleLines := h - 3
	if visibleLines < 1 {
		visibleLines = 1
	}

	lines := []string{panelTitleStyle.Render("Activity")}
	entries := m.activityEntries()
	if len(entries) == 0 {
		lines = append(lines, "", dimStyle.Render("Waiting for alerts..."))
		return panelBorderStyle.Width(w - 2).Height(h - 2).Render(strings.Join(lines, "\n"))
	}

	start := len(entries) - visibleLines
	if start < 0 {
		start = 0
	}
	for _, e := range entries[start:] {
		lines = append(lines, renderActivityLine(e, contentW, false))
	}
	return panelBorderStyle.Width(w - 2).Height(h - 2).Render(strings.Join(lines, "\n"))
}

// renderActivityView is the full-screen, scrollable activity log.
func (m Model) renderActivityView() string {
	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteByte('\n')

	entries := m.activityEntries()
	visibleH := m.height - 2
	if visibleH < 1 {
		visibleH = 1
	}

	var startIdx int
	if m.autoScroll {
		startIdx = len(entries) - visibleH
	} else {
		startIdx = m.activityScrollPos
		if startIdx > len(entries)-visibleH {
			startIdx = len(entries) - visibleH
		}
	}
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + visibleH
	if endIdx > len(entries) {
		endIdx = len(entries)
	}

	if len(entries) == 0 {
		sb.WriteString(dimStyle.Render("No activity yet"))
		sb.WriteByte('\n')
	}
	for _, e := range entries[startIdx:endIdx] {
		sb.WriteString(renderActivityLine(e, m.width-2, true))
		sb.WriteByte('\n')
	}
	if len(entries) > visibleH {
		sb.WriteString(dimStyle.Render(formatScrollPos(startIdx+1, endIdx, len(entries))))
	}
	return sb.String()
}

func (m Model) activityEntries() []events.Entry {
	if m.activity == nil {
		return nil
	}
	return m.activity.ListAll()
}

// renderActivityLine formats one entry. The full view prefixes a timestamp.
func renderActivityLine(e events.Entry, maxW int, withTime bool) string {
	icon := kindIcons[e.Kind]
	if icon == "" {
		icon = "??"
	}
	style, ok := kindStyles[e.Kind]
	if !ok {
		style = dimStyle
	}

	prefix := icon + " "
	if withTime {
		prefix = e.Timestamp.Format("15:04:05") + " " + prefix
	}
	text := truncateText(e.Formatted, maxW-len([]rune(prefix)))
	if (e.Kind == events.KindPush || e.Kind == events.KindPoll) && e.AlertID != "" {
		return style.Render(prefix) + severityStyle(e.Severity).Render(text)
	}
	return style.Render(prefix + text)
}
