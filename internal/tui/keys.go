package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Open     key.Binding
	Refresh  key.Binding
	Quit     key.Binding
	Back     key.Binding
	Submit   key.Binding
	Focus    key.Binding
	Reply    key.Binding
	View     key.Binding
	Download key.Binding
	Attach   key.Binding
	Leave    key.Binding
}

var keys = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "join")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	Focus:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "select messages")),
	Reply:    key.NewBinding(key.WithKeys("r", "enter"), key.WithHelp("r", "reply")),
	View:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
	Download: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download")),
	Attach:   key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("ctrl+u", "attach file")),
	Leave:    key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "leave room")),
}

func helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}
