package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every binding the dashboard reacts to.
type KeyMap struct {
	Quit        key.Binding
	Up          key.Binding
	Down        key.Binding
	Enter       key.Binding
	Escape      key.Binding
	Tab         key.Binding
	Toggle      key.Binding
	ToggleAll   key.Binding
	Delete      key.Binding
	BulkDelete  key.Binding
	Refresh     key.Binding
	Live        key.Binding
	Filter      key.Binding
	Severity    key.Binding
	Unacked     key.Binding
	ClearFilter key.Binding
	Confirm     key.Binding
	Deny        key.Binding
	NextField   key.Binding
	PrevField   key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Enter:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "detail")),
		Escape:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Tab:         key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "activity")),
		Toggle:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		ToggleAll:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select all")),
		Delete:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		BulkDelete:  key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete selected")),
		Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Live:        key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "live polling")),
		Filter:      key.NewBinding(key.WithKeys("f", "/"), key.WithHelp("f", "filter")),
		Severity:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "severity")),
		Unacked:     key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unacknowledged")),
		ClearFilter: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear filters")),
		Confirm:     key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "confirm")),
		Deny:        key.NewBinding(key.WithKeys("n", "N"), key.WithHelp("n", "cancel")),
		NextField:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		PrevField:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous field")),
	}
}
