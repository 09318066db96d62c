package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/npezzotti/anon-chat/internal/directory"
	"github.com/npezzotti/anon-chat/internal/view"
)

func (m *Model) updateDirectory(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(km, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(km, keys.Down):
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case key.Matches(km, keys.Refresh):
		m.clearStatus()
		return m, m.loadRooms()
	case key.Matches(km, keys.Open):
		if m.cursor < len(m.entries) {
			return m, m.selectRoom(m.entries[m.cursor].Room)
		}
	}
	return m, nil
}

func onlineLabel(n int) string {
	if n < 0 {
		return "? online"
	}
	return fmt.Sprintf("%d online", n)
}

func (m *Model) viewDirectory() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Chat rooms"))
	b.WriteString("\n\n")

	switch {
	case m.loading && len(m.entries) == 0:
		b.WriteString(mutedStyle.Render("Loading rooms..."))
		b.WriteString("\n")
	case len(m.entries) == 0:
		b.WriteString(mutedStyle.Render("No rooms available."))
		b.WriteString("\n")
	}

	for i, e := range m.entries {
		prefix := "  "
		name := view.Sanitize(directory.Title(e.Room))
		if i == m.cursor {
			prefix = cursorStyle.Render("> ")
			name = cursorStyle.Render(name)
		}

		status := publicStyle.Render(e.Status())
		if e.Room.IsLocked {
			status = lockedStyle.Render(e.Status())
		}

		fmt.Fprintf(&b, "%s%s  %s  %s\n", prefix, name, status, mutedStyle.Render(onlineLabel(e.Online)))
		if e.Room.Description != "" {
			b.WriteString("    " + mutedStyle.Render(view.Sanitize(e.Room.Description)) + "\n")
		}
	}

	b.WriteString("\n")
	if s := m.statusLine(); s != "" {
		b.WriteString(s + "\n")
	}
	b.WriteString(mutedStyle.Render(helpLine(keys.Up, keys.Down, keys.Open, keys.Refresh, keys.Quit)))
	return b.String()
}
