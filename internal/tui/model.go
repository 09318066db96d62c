// Package tui is the interactive terminal front end: a room directory, a
// password prompt for locked rooms and the room view itself.
package tui

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/npezzotti/anon-chat/internal/composer"
	"github.com/npezzotti/anon-chat/internal/config"
	"github.com/npezzotti/anon-chat/internal/directory"
	"github.com/npezzotti/anon-chat/internal/feed"
	"github.com/npezzotti/anon-chat/internal/session"
	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"
)

// Backend is everything the screens need from the chat service.
// *chatapi.Client implements it.
type Backend interface {
	directory.Backend
	composer.Backend
	feed.MessageSource
	Download(ctx context.Context, fileUrl string, w io.Writer) (int64, error)
	URL(path string) string
}

type screen int

const (
	screenDirectory screen = iota
	screenPassword
	screenRoom
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	lockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	publicStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Italic(true)
)

type Model struct {
	backend Backend
	sess    *session.Session
	dir     *directory.Directory
	cfg     config.ClientConfig
	log     zerolog.Logger
	open    func(url string) error
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	screen   screen
	width    int
	height   int
	status   string
	statusOk bool

	entries []directory.Entry
	cursor  int
	loading bool

	pending  types.Room
	password textinput.Model

	initialRoom string
	room        *roomState
}

type Option func(*Model)

// WithOpener replaces the function used to open attachments, by default the
// system browser.
func WithOpener(open func(url string) error) Option {
	return func(m *Model) {
		m.open = open
	}
}

// WithInitialRoom navigates straight to roomId once the program starts.
func WithInitialRoom(roomId string) Option {
	return func(m *Model) {
		m.initialRoom = roomId
	}
}

func withClock(now func() time.Time) Option {
	return func(m *Model) {
		m.now = now
	}
}

func New(backend Backend, sess *session.Session, cfg config.ClientConfig, logger zerolog.Logger, opts ...Option) *Model {
	ctx, cancel := context.WithCancel(context.Background())

	pw := textinput.New()
	pw.Placeholder = "Room password"
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	pw.Width = 40

	m := &Model{
		backend:  backend,
		sess:     sess,
		dir:      directory.New(backend, logger),
		cfg:      cfg,
		log:      logger.With().Str("component", "tui").Logger(),
		open:     browser.OpenURL,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		width:    80,
		height:   24,
		password: pw,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close stops any running pollers. The program calls it on quit.
func (m *Model) Close() {
	m.cancel()
}

// Run starts the program on the terminal and blocks until the user quits.
func Run(m *Model) error {
	defer m.Close()

	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

type roomsLoadedMsg struct {
	entries []directory.Entry
	err     error
}

type roomFoundMsg struct {
	room types.Room
	err  error
}

type unlockResultMsg struct {
	room types.Room
	err  error
}

func (m *Model) Init() tea.Cmd {
	if m.initialRoom != "" {
		return m.findRoom(m.initialRoom)
	}
	return m.loadRooms()
}

func (m *Model) loadRooms() tea.Cmd {
	m.loading = true
	ctx := m.ctx
	return func() tea.Msg {
		entries, err := m.dir.Load(ctx)
		return roomsLoadedMsg{entries: entries, err: err}
	}
}

func (m *Model) findRoom(roomId string) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		room, err := m.dir.Find(ctx, roomId)
		return roomFoundMsg{room: room, err: err}
	}
}

func (m *Model) setError(err error) {
	m.status = describe(err, m.cfg.MaxUploadBytes)
	m.statusOk = false
}

func (m *Model) setInfo(s string) {
	m.status = s
	m.statusOk = true
}

func (m *Model) clearStatus() {
	m.status = ""
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.room != nil {
			m.layoutRoom()
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.Close()
			return m, tea.Quit
		}

	case roomsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.entries = msg.entries
		if m.cursor >= len(m.entries) {
			m.cursor = max(len(m.entries)-1, 0)
		}
		return m, nil

	case roomFoundMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, m.loadRooms()
		}
		return m, m.selectRoom(msg.room)

	case unlockResultMsg:
		if m.screen != screenPassword || msg.room.Id != m.pending.Id {
			return m, nil
		}
		if msg.err != nil {
			m.password.Reset()
			m.setError(msg.err)
			return m, nil
		}
		m.password.Reset()
		m.password.Blur()
		return m, m.enterRoom(msg.room)
	}

	switch m.screen {
	case screenPassword:
		return m.updatePassword(msg)
	case screenRoom:
		return m.updateRoom(msg)
	default:
		return m.updateDirectory(msg)
	}
}

// selectRoom routes to the password prompt for locked rooms and straight
// into the room otherwise.
func (m *Model) selectRoom(room types.Room) tea.Cmd {
	m.clearStatus()
	m.log.Debug().Str("route", directory.Route(room)).Msg("select room")
	if room.IsLocked {
		m.pending = room
		m.screen = screenPassword
		m.password.Reset()
		return m.password.Focus()
	}
	return m.enterRoom(room)
}

func (m *Model) View() string {
	switch m.screen {
	case screenPassword:
		return m.viewPassword()
	case screenRoom:
		return m.viewRoom()
	default:
		return m.viewDirectory()
	}
}

func (m *Model) statusLine() string {
	if m.status == "" {
		return ""
	}
	if m.statusOk {
		return infoStyle.Render(m.status)
	}
	return errorStyle.Render(m.status)
}
