package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/npezzotti/anon-chat/internal/directory"
	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/npezzotti/anon-chat/internal/view"
)

func (m *Model) unlock(room types.Room, password string) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		err := m.dir.Unlock(ctx, room.Id, password)
		return unlockResultMsg{room: room, err: err}
	}
}

func (m *Model) updatePassword(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, keys.Back):
			m.password.Reset()
			m.password.Blur()
			m.pending = types.Room{}
			m.screen = screenDirectory
			m.clearStatus()
			return m, m.loadRooms()
		case key.Matches(km, keys.Submit):
			pw := m.password.Value()
			if strings.TrimSpace(pw) == "" {
				m.setError(directory.ErrPasswordRequired)
				return m, nil
			}
			m.setInfo("Checking password...")
			return m, m.unlock(m.pending, pw)
		}
	}

	var cmd tea.Cmd
	m.password, cmd = m.password.Update(msg)
	return m, cmd
}

func (m *Model) viewPassword() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(view.Sanitize(directory.Title(m.pending))))
	b.WriteString("  " + lockedStyle.Render("Locked"))
	b.WriteString("\n\n")
	b.WriteString("This room is password protected.\n\n")
	b.WriteString(m.password.View())
	b.WriteString("\n\n")
	if s := m.statusLine(); s != "" {
		b.WriteString(s + "\n")
	}
	b.WriteString(mutedStyle.Render(helpLine(
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "unlock")),
		keys.Back,
		keys.Quit,
	)))
	return b.String()
}
