package tui

import (
	"fmt"
	"strings"

	"github.com/nixlim/alert-top/internal/alerts"
	"github.com/nixlim/alert-top/internal/events"
)

// Column widths of the alert list.
const (
	colMark     = 3
	colSeverity = 8
	colTime     = 11
)

// renderAlertListPanel renders the filtered alert projection with the
// cursor row highlighted and selected rows marked.
func (m Model) renderAlertListPanel(w, h int) string {
	contentW := w - 4
	if contentW < 30 {
		contentW = 30
	}
	contentH := h - 2
	if contentH < 3 {
		contentH = 3
	}

	var lines []string
	total := 0
	if m.store != nil {
		total = m.store.Len()
	}
	title := panelTitleStyle.Render("Alerts") +
		dimStyle.Render(fmt.Sprintf(" [%d of %d]", len(m.visible), total))
	lines = append(lines, title)

	if len(m.visible) == 0 {
		lines = append(lines, "")
		if total == 0 {
			lines = append(lines, dimStyle.Render("No alerts received yet"))
		} else {
			lines = append(lines, dimStyle.Render("No alerts match the current filters"))
		}
		return panelBorderStyle.Width(w - 2).Height(h - 2).Render(strings.Join(lines, "\n"))
	}

	header := formatAlertHeader()
	lines = append(lines, dimStyle.Render(header))

	rows := contentH - 2
	if rows < 1 {
		rows = 1
	}
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := start + rows
	if end > len(m.visible) {
		end = len(m.visible)
	}

	for i := start; i < end; i++ {
		a := m.visible[i]
		selected := m.selection != nil && m.selection.IsSelected(a.ID)
		if i == m.cursor {
			lines = append(lines, cursorStyle.Render(m.formatAlertRow(a, selected, contentW)))
			continue
		}
		lines = append(lines, m.styledAlertRow(a, selected, contentW))
	}

	if len(m.visible) > rows {
		lines[len(lines)-1] += dimStyle.Render(" " + formatScrollPos(start+1, end, len(m.visible)))
	}

	return panelBorderStyle.Width(w - 2).Height(h - 2).Render(strings.Join(lines, "\n"))
}

func formatAlertHeader() string {
	return fmt.Sprintf("%-*s %-*s %-*s %s", colMark, "", colSeverity, "SEVERITY", colTime, "CREATED", "TITLE")
}

// formatAlertRow renders one plain row; the cursor row is styled as a whole.
func (m Model) formatAlertRow(a alerts.Alert, selected bool, w int) string {
	mark := "[ ]"
	if selected {
		mark = "[x]"
	}
	return fmt.Sprintf("%-*s %-*s %-*s %s",
		colMark, mark,
		colSeverity, events.SeverityTag(a.Severity),
		colTime, a.CreatedAt.In(m.location()).Format("01-02 15:04"),
		truncateText(rowTitle(a), titleWidth(w)))
}

func (m Model) styledAlertRow(a alerts.Alert, selected bool, w int) string {
	mark := "[ ]"
	if selected {
		mark = selectedMarkStyle.Render("[x]")
	}
	sev := severityStyle(a.Severity).Render(fmt.Sprintf("%-*s", colSeverity, events.SeverityTag(a.Severity)))
	created := dimStyle.Render(fmt.Sprintf("%-*s", colTime, a.CreatedAt.In(m.location()).Format("01-02 15:04")))
	title := truncateText(rowTitle(a), titleWidth(w))
	if a.IsAcknowledged() {
		title = dimStyle.Render(title)
	}
	return mark + " " + sev + " " + created + " " + title
}

// rowTitle appends keywords to the title when they fit the row.
func rowTitle(a alerts.Alert) string {
	if len(a.Keywords) == 0 {
		return a.Title
	}
	return a.Title + " (" + strings.Join(a.Keywords, ", ") + ")"
}

func titleWidth(w int) int {
	tw := w - colMark - colSeverity - colTime - 3
	if tw < 10 {
		tw = 10
	}
	return tw
}

// formatScrollPos returns a string like "[10-20/100]".
func formatScrollPos(start, end, total int) string {
	return fmt.Sprintf("[%d-%d/%d]", start, end, total)
}
