package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all key bindings
type keyMap struct {
	Reveal  key.Binding
	Refresh key.Binding
	Usage   key.Binding
	Confirm key.Binding
	Cancel  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Reveal:  key.NewBinding(key.WithKeys(" ", "v"), key.WithHelp("space", "show/hide code")),
	Refresh: key.NewBinding(key.WithKeys("r", "R"), key.WithHelp("r", "new code")),
	Usage:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "reload usage")),
	Confirm: key.NewBinding(key.WithKeys("y", "Y", "enter"), key.WithHelp("y", "confirm")),
	Cancel:  key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "cancel")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Reveal, k.Refresh, k.Usage, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Reveal, k.Refresh, k.Usage},
		{k.Confirm, k.Cancel},
		{k.Help, k.Quit},
	}
}
