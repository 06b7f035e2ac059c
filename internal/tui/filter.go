package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/alert-top/internal/alerts"
	"github.com/nixlim/alert-top/internal/filter"
)

// Text fields of the filter form, in tab order.
const (
	fieldSearch = iota
	fieldDateFrom
	fieldDateTo
	fieldTimeFrom
	fieldTimeTo
	fieldCount
)

var fieldLabels = [fieldCount]string{
	"Search",
	"Date from",
	"Date to",
	"Time from",
	"Time to",
}

// FilterForm is the overlay editing the free-text parts of the criteria.
// Severity and the acknowledgement switch have their own keys.
type FilterForm struct {
	Active bool
	Focus  int
	Inputs [fieldCount]textinput.Model
	Err    string
}

// NewFilterForm returns an inactive form.
func NewFilterForm() FilterForm {
	var f FilterForm
	placeholders := [fieldCount]string{
		"title, description or keyword",
		"YYYY-MM-DD",
		"YYYY-MM-DD",
		"HH:MM",
		"HH:MM",
	}
	for i := range f.Inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.Prompt = ""
		ti.CharLimit = 128
		if i != fieldSearch {
			ti.CharLimit = 10
		}
		f.Inputs[i] = ti
	}
	return f
}

// Open loads c into the inputs and focuses the search field.
func (f *FilterForm) Open(c filter.Criteria) {
	f.Active = true
	f.Err = ""
	values := [fieldCount]string{c.Search, c.DateFrom, c.DateTo, c.TimeFrom, c.TimeTo}
	for i := range f.Inputs {
		f.Inputs[i].SetValue(values[i])
		f.Inputs[i].CursorEnd()
	}
	f.focus(fieldSearch)
}

// Close hides the form without applying it.
func (f *FilterForm) Close() {
	f.Active = false
	f.Err = ""
	for i := range f.Inputs {
		f.Inputs[i].Blur()
	}
}

// Criteria overlays the form values onto base.
func (f *FilterForm) Criteria(base filter.Criteria) filter.Criteria {
	c := base
	c.Search = strings.TrimSpace(f.Inputs[fieldSearch].Value())
	c.DateFrom = strings.TrimSpace(f.Inputs[fieldDateFrom].Value())
	c.DateTo = strings.TrimSpace(f.Inputs[fieldDateTo].Value())
	c.TimeFrom = strings.TrimSpace(f.Inputs[fieldTimeFrom].Value())
	c.TimeTo = strings.TrimSpace(f.Inputs[fieldTimeTo].Value())
	return c
}

func (f *FilterForm) focus(i int) tea.Cmd {
	f.Focus = (i + fieldCount) % fieldCount
	var cmd tea.Cmd
	for j := range f.Inputs {
		if j == f.Focus {
			cmd = f.Inputs[j].Focus()
		} else {
			f.Inputs[j].Blur()
		}
	}
	return cmd
}

// handleFilterFormKey edits the form. Enter validates and applies it.
// Every keystroke in the form is an interaction.
func (m Model) handleFilterFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.clock.Touch()
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.filterForm.Close()
		return m, nil

	case key.Matches(msg, m.keys.NextField):
		return m, m.filterForm.focus(m.filterForm.Focus + 1)

	case key.Matches(msg, m.keys.PrevField):
		return m, m.filterForm.focus(m.filterForm.Focus - 1)

	case msg.Type == tea.KeyEnter:
		next := m.filterForm.Criteria(m.criteria)
		if err := next.Validate(); err != nil {
			m.filterForm.Err = err.Error()
			return m, nil
		}
		m.filterForm.Close()
		return m.setCriteria(next)
	}

	var cmd tea.Cmd
	i := m.filterForm.Focus
	m.filterForm.Inputs[i], cmd = m.filterForm.Inputs[i].Update(msg)
	return m, cmd
}

// nextSeverity cycles all -> critical -> high -> medium -> low -> all.
func nextSeverity(current string) string {
	if current == "" || current == filter.SeverityAll {
		return string(alerts.Severities[0])
	}
	for i, s := range alerts.Severities {
		if string(s) == current && i+1 < len(alerts.Severities) {
			return string(alerts.Severities[i+1])
		}
	}
	return filter.SeverityAll
}

// filterSummary describes the active criteria for the header line.
func filterSummary(c filter.Criteria) string {
	var parts []string
	if c.Severity != "" && c.Severity != filter.SeverityAll {
		parts = append(parts, "sev="+c.Severity)
	}
	if c.OnlyUnacknowledged {
		parts = append(parts, "unacked")
	}
	if c.Search != "" {
		parts = append(parts, "q="+c.Search)
	}
	if c.DateFrom != "" || c.DateTo != "" {
		parts = append(parts, "date="+c.DateFrom+".."+c.DateTo)
	}
	if c.TimeFrom != "" || c.TimeTo != "" {
		parts = append(parts, "time="+c.TimeFrom+".."+c.TimeTo)
	}
	return strings.Join(parts, " ")
}
