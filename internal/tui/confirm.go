package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/alert-top/internal/events"
)

// confirmState is the pending delete waiting for the user's answer.
type confirmState struct {
	active bool
	single bool
	ids    []string
	info   string
}

// initiateDelete opens the confirmation dialog for the alert under the
// cursor, or for the whole selection when bulk is set.
func (m Model) initiateDelete(bulk bool) (tea.Model, tea.Cmd) {
	if m.selection == nil || m.deleting {
		return m, nil
	}
	m.clock.Touch()

	if bulk {
		ids := m.selection.Selected()
		if len(ids) == 0 {
			m.setStatus("No alerts selected", false)
			return m, nil
		}
		m.confirm = confirmState{
			active: true,
			ids:    ids,
			info:   fmt.Sprintf("%d selected alerts", len(ids)),
		}
		return m, nil
	}

	a, ok := m.cursorAlert()
	if !ok {
		return m, nil
	}
	m.confirm = confirmState{
		active: true,
		single: true,
		ids:    []string{a.ID},
		info: fmt.Sprintf("[%s] %s\nID: %s",
			events.SeverityTag(a.Severity), truncateText(a.Title, 60), a.ID),
	}
	return m, nil
}

// handleConfirmKey handles Y/N/Esc in the delete confirmation dialog.
func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		pending := m.confirm
		m.confirm = confirmState{}
		m.deleting = true
		m.clock.Touch()
		if pending.single {
			m.setStatus("Deleting alert...", false)
		} else {
			m.setStatus(fmt.Sprintf("Deleting %d alerts...", len(pending.ids)), false)
		}
		return m, m.deleteCmd(pending.ids, pending.single)

	case key.Matches(msg, m.keys.Deny), key.Matches(msg, m.keys.Escape):
		m.confirm = confirmState{}
		return m, nil
	}

	return m, nil
}

// deleteCmd fans the deletes out off the loop. The store and selection are
// only touched when the result comes back as a bulkDoneMsg.
func (m Model) deleteCmd(ids []string, single bool) tea.Cmd {
	sel, ctx := m.selection, m.ctx
	return func() tea.Msg {
		return bulkDoneMsg{result: sel.Fanout(ctx, ids), single: single}
	}
}

// finishDelete applies a fan-out result on the loop.
func (m *Model) finishDelete(msg bulkDoneMsg) {
	m.deleting = false
	if m.selection == nil {
		return
	}
	err := m.selection.ApplyBulk(msg.result)
	now := m.now()
	total := len(msg.result.IDs)
	failed := len(msg.result.Failed())

	m.activity.Add(events.FormatDelete(total, failed, now))
	switch {
	case err == nil && msg.single:
		m.setStatus("Alert deleted", false)
	case err == nil:
		m.setStatus(fmt.Sprintf("Deleted %d alerts", total), false)
	case msg.single:
		cause := msg.result.Outcomes[msg.result.IDs[0]]
		m.setStatus("Delete failed: "+cause.Error(), true)
		m.activity.Add(events.FormatError("Delete failed", cause, now))
	default:
		m.setStatus(err.Error(), true)
		m.activity.Add(events.FormatError("Bulk delete", err, now))
	}
	m.refreshVisible()
}
