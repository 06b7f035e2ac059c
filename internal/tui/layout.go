package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/alert-top/internal/alerts"
)

type panelDimensions struct {
	listW, listH         int
	activityW, activityH int
	headerH              int
	cardsH               int
	statusH              int
}

const (
	minWidth  = 60
	minHeight = 12

	headerHeight = 1
	cardsHeight  = 3
	statusHeight = 1
)

func computeDimensions(totalW, totalH int) panelDimensions {
	if totalW < minWidth {
		totalW = minWidth
	}
	if totalH < minHeight {
		totalH = minHeight
	}

	d := panelDimensions{
		headerH: headerHeight,
		cardsH:  cardsHeight,
		statusH: statusHeight,
	}

	usableH := totalH - headerHeight - cardsHeight - statusHeight
	if usableH < 4 {
		usableH = 4
	}

	d.listW = totalW * 62 / 100
	if d.listW < 40 {
		d.listW = 40
	}
	if d.listW > totalW-20 {
		d.listW = totalW - 20
	}
	d.listH = usableH

	d.activityW = totalW - d.listW
	if d.activityW < 20 {
		d.activityW = 20
	}
	d.activityH = usableH

	return d
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	onlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	offlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	selectedMarkStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("82"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	filterFormStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)

	confirmDialogStyle = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				BorderForeground(lipgloss.Color("196")).
				Padding(1, 3).
				Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	statusErrStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	toastStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("226"))

	toastHighStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("160"))

	detailOverlayStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("69")).
				Padding(1, 2)
)

// severityColors are shared by the cards, list tags and activity lines.
var severityColors = map[alerts.Severity]lipgloss.Color{
	alerts.SeverityCritical: lipgloss.Color("196"),
	alerts.SeverityHigh:     lipgloss.Color("208"),
	alerts.SeverityMedium:   lipgloss.Color("226"),
	alerts.SeverityLow:      lipgloss.Color("39"),
	alerts.SeverityUnknown:  lipgloss.Color("245"),
}

func severityStyle(s alerts.Severity) lipgloss.Style {
	c, ok := severityColors[s]
	if !ok {
		c = severityColors[alerts.SeverityUnknown]
	}
	return lipgloss.NewStyle().Foreground(c).Bold(s.HighRisk())
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func (m Model) renderDashboard() string {
	dims := computeDimensions(m.width, m.height)

	header := m.renderHeader()
	cards := m.renderSeverityCards(m.width)
	list := m.renderAlertListPanel(dims.listW, dims.listH)
	activity := m.renderActivityPanel(dims.activityW, dims.activityH)
	status := m.renderStatusBar()

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, list, activity)
	mcLines := strings.Split(mainContent, "\n")
	if len(mcLines) > dims.listH {
		mainContent = strings.Join(mcLines[:dims.listH], "\n")
	}

	layout := lipgloss.JoinVertical(lipgloss.Left, header, cards, mainContent, status)

	if m.confirm.active {
		layout = m.overlayConfirmDialog(layout)
	}
	if m.filterForm.Active {
		layout = m.overlayFilterForm(layout)
	}
	if m.detailOverlay {
		layout = m.overlayDetail(layout)
	}
	return layout
}

func (m Model) renderHeader() string {
	title := " alert-top"

	socket := offlineStyle.Render(" ● Socket offline")
	if m.connected {
		socket = onlineStyle.Render(" ● Live socket")
	}
	polling := dimStyle.Render(" [poll paused]")
	if m.refresher == nil || m.refresher.Live() {
		polling = dimStyle.Render(" [live polling]")
	}
	var extra string
	if n := m.selectedCount(); n > 0 {
		extra += fmt.Sprintf(" [%d selected]", n)
	}
	if s := filterSummary(m.criteria); s != "" {
		extra += " {" + s + "}"
	}

	help := m.headerHelp()
	left := title + socket + polling + extra
	padding := m.width - lipgloss.Width(left) - lipgloss.Width(help)
	if padding < 0 {
		padding = 0
	}
	return headerStyle.Width(m.width).Render(left + strings.Repeat(" ", padding) + help)
}

func (m Model) headerHelp() string {
	if m.view == ViewActivity {
		return "Tab:Alerts  Esc:Back  q:Quit "
	}
	return "f:Filter  s:Sev  u:Unacked  Space:Sel  a:All  d/D:Del  r:Refresh  l:Live  q:Quit "
}

func (m Model) selectedCount() int {
	if m.selection == nil {
		return 0
	}
	return m.selection.Count()
}

// renderStatusBar shows the live toast when one is pending, then any status
// message, then the dropped-record counter.
func (m Model) renderStatusBar() string {
	var parts []string
	if m.toast != "" {
		style := toastStyle
		if m.toastHigh {
			style = toastHighStyle
		}
		parts = append(parts, style.Render(" "+m.toast+" "))
	}
	if m.statusMessage != "" {
		if m.statusErr {
			parts = append(parts, statusErrStyle.Render(m.statusMessage))
		} else {
			parts = append(parts, statusBarStyle.Render(m.statusMessage))
		}
	}
	if m.store != nil {
		if n := m.store.Dropped(); n > 0 {
			parts = append(parts, dimStyle.Render(fmt.Sprintf("[%d malformed dropped]", n)))
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) overlayConfirmDialog(base string) string {
	dialog := confirmDialogStyle.Render(
		"Delete alert?\n\n" +
			m.confirm.info + "\n\n" +
			"[Y] Delete  [n/Esc] Cancel")
	return placeOverlay(base, dialog)
}

func (m Model) overlayFilterForm(base string) string {
	var sb strings.Builder
	sb.WriteString(panelTitleStyle.Render("Filters"))
	sb.WriteString("\n\n")
	for i, in := range m.filterForm.Inputs {
		label := fmt.Sprintf("%-10s", fieldLabels[i])
		if i == m.filterForm.Focus {
			label = cursorStyle.Render(label)
		}
		sb.WriteString(label + " " + in.View() + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(fmt.Sprintf("Severity: %s   Unacknowledged only: %v",
		severityLabel(m.criteria.Severity), m.criteria.OnlyUnacknowledged)))
	if m.filterForm.Err != "" {
		sb.WriteString("\n" + statusErrStyle.Render(m.filterForm.Err))
	}
	sb.WriteString("\n\nEnter: Apply  Tab: Next  Esc: Cancel")
	return placeOverlay(base, filterFormStyle.Render(sb.String()))
}

func severityLabel(s string) string {
	if s == "" {
		return "all"
	}
	return s
}

func (m Model) overlayDetail(base string) string {
	overlayW := m.width * 70 / 100
	if overlayW < 40 {
		overlayW = 40
	}
	if m.width > 4 && overlayW > m.width-4 {
		overlayW = m.width - 4
	}
	overlayH := m.height * 60 / 100
	if overlayH < 10 {
		overlayH = 10
	}

	contentW := overlayW - 6
	if contentW < 10 {
		contentW = 10
	}
	contentH := overlayH - 4
	if contentH < 3 {
		contentH = 3
	}

	wrapped := wrapLines(strings.Split(m.detailContent, "\n"), contentW)

	startIdx := m.detailScrollPos
	if startIdx > len(wrapped)-contentH {
		startIdx = len(wrapped) - contentH
	}
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + contentH
	if endIdx > len(wrapped) {
		endIdx = len(wrapped)
	}

	body := strings.Join(wrapped[startIdx:endIdx], "\n")
	footer := dimStyle.Render("Esc/Enter: Close")
	if len(wrapped) > contentH {
		footer += dimStyle.Render("  Up/Down: Scroll")
	}
	content := panelTitleStyle.Render(m.detailTitle) + "\n\n" + body + "\n\n" + footer

	return placeOverlay(base, detailOverlayStyle.Width(overlayW-2).Render(content))
}

// wrapLines breaks lines longer than w runes at the last space.
func wrapLines(lines []string, w int) []string {
	var wrapped []string
	for _, line := range lines {
		r := []rune(line)
		for len(r) > w {
			cutAt := w
			for i := w; i > 0; i-- {
				if r[i] == ' ' {
					cutAt = i
					break
				}
			}
			wrapped = append(wrapped, string(r[:cutAt]))
			r = r[cutAt:]
			if len(r) > 0 && r[0] == ' ' {
				r = r[1:]
			}
		}
		wrapped = append(wrapped, string(r))
	}
	return wrapped
}

func placeOverlay(bg, fg string) string {
	return lipgloss.Place(
		lipgloss.Width(bg),
		lipgloss.Height(bg),
		lipgloss.Center,
		lipgloss.Center,
		fg,
		lipgloss.WithWhitespaceChars(" "),
	)
}

// truncateText shortens s to maxLen runes with an ellipsis.
func truncateText(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen < 1 {
		return ""
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
