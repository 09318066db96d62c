package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/npezzotti/anon-chat/internal/composer"
	"github.com/npezzotti/anon-chat/internal/directory"
	"github.com/npezzotti/anon-chat/internal/feed"
	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/npezzotti/anon-chat/internal/view"
)

const updateBuffer = 16

type focus int

const (
	focusInput focus = iota
	focusList
)

type roomState struct {
	info   types.Room
	ctx    context.Context
	cancel context.CancelFunc

	updates  chan tea.Msg
	poller   *feed.MessagePoller
	composer *composer.Composer

	online   int
	loaded   bool
	views    []view.MessageView
	selected int
	focus    focus

	uploading bool
	sending   bool

	input    textinput.Model
	path     textinput.Model
	viewport viewport.Model
	renderer *view.TerminalRenderer
}

// Poller results carry the room state that started the poller so results
// from a room that was left, or re-entered since, are dropped.
type messagesMsg struct {
	room *roomState
	msgs []types.Message
}

type onlineMsg struct {
	room  *roomState
	count int
}

type sendResultMsg struct {
	roomId string
	err    error
}

type uploadResultMsg struct {
	roomId string
	name   string
	err    error
}

type actionResultMsg struct {
	info string
	err  error
}

// waitForUpdate delivers the next poller result to the program. The room
// handlers re-arm it after every message they consume.
func waitForUpdate(ctx context.Context, ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-ch:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) enterRoom(room types.Room) tea.Cmd {
	if m.room != nil {
		m.room.cancel()
	}
	m.sess.EnterRoom(room.Id)

	ctx, cancel := context.WithCancel(m.ctx)
	ch := make(chan tea.Msg, updateBuffer)
	push := func(msg tea.Msg) {
		select {
		case ch <- msg:
		case <-ctx.Done():
		}
	}

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 4000

	path := textinput.New()
	path.Placeholder = "Path of the file to upload"

	rs := &roomState{
		info:     room,
		ctx:      ctx,
		cancel:   cancel,
		updates:  ch,
		online:   -1,
		selected: -1,
		input:    input,
		path:     path,
		viewport: viewport.New(m.width, 1),
		renderer: view.NewTerminalRenderer(m.width),
	}

	rs.poller = feed.NewMessagePoller(m.backend, feed.RenderFunc(func(msgs []types.Message) {
		push(messagesMsg{room: rs, msgs: msgs})
	}), room.Id, m.sess.AnonymousId(), m.log)
	online := feed.NewOnlinePoller(m.backend, func(count int) {
		push(onlineMsg{room: rs, count: count})
	}, room.Id, m.log)
	rs.composer = composer.New(m.backend, m.sess, rs.poller, m.log, composer.WithMaxUploadSize(m.cfg.MaxUploadBytes))

	go rs.poller.Run(ctx, m.cfg.MessageInterval)
	go online.Run(ctx, m.cfg.OnlineInterval)

	m.room = rs
	m.screen = screenRoom
	m.layoutRoom()
	m.log.Info().Str("room_id", room.Id).Msg("entered room")

	return tea.Batch(rs.input.Focus(), waitForUpdate(ctx, ch))
}

func (m *Model) leaveRoom() tea.Cmd {
	if m.room != nil {
		m.log.Info().Str("room_id", m.room.info.Id).Msg("left room")
		m.room.cancel()
		m.room = nil
	}
	m.sess.LeaveRoom()
	m.screen = screenDirectory
	m.clearStatus()
	return m.loadRooms()
}

// layoutRoom resizes the room to the window and redraws the message list.
func (m *Model) layoutRoom() {
	rs := m.room
	if rs == nil {
		return
	}

	rs.viewport.Width = m.width
	rs.input.Width = max(m.width-4, 10)
	rs.path.Width = max(m.width-4, 10)
	rs.renderer.SetWidth(m.width)
	m.fitRoom()
	m.renderMessages()
}

// fitRoom gives the message list whatever height the header and the
// composer leave over.
func (m *Model) fitRoom() {
	chrome := lipgloss.Height(m.roomHeader()) + lipgloss.Height(m.roomFooter())
	m.room.viewport.Height = max(m.height-chrome, 1)
}

func (m *Model) renderMessages() {
	rs := m.room
	if !rs.loaded {
		rs.viewport.SetContent(mutedStyle.Render("Loading messages..."))
		return
	}

	rs.viewport.SetContent(rs.renderer.Render(rs.views, rs.selected))
	if rs.focus == focusInput {
		rs.viewport.GotoBottom()
		return
	}
	m.scrollToSelected()
}

// scrollToSelected moves the viewport just enough to show the top of the
// selected message.
func (m *Model) scrollToSelected() {
	rs := m.room
	if rs.selected <= 0 {
		rs.viewport.SetYOffset(0)
		return
	}

	offset := lipgloss.Height(rs.renderer.Render(rs.views[:rs.selected], -1))
	if offset < rs.viewport.YOffset || offset >= rs.viewport.YOffset+rs.viewport.Height {
		rs.viewport.SetYOffset(offset)
	}
}

// setMessages rebuilds every view, keeping the selection on the same message
// when it is still present.
func (m *Model) setMessages(msgs []types.Message) {
	rs := m.room

	var selectedId string
	if rs.selected >= 0 && rs.selected < len(rs.views) {
		selectedId = rs.views[rs.selected].Id
	}

	rs.loaded = true
	rs.views = view.Build(msgs, m.sess, m.now())

	rs.selected = -1
	for i, v := range rs.views {
		if selectedId != "" && v.Id == selectedId {
			rs.selected = i
			break
		}
	}
	if rs.focus == focusList && rs.selected < 0 && len(rs.views) > 0 {
		rs.selected = len(rs.views) - 1
	}

	m.renderMessages()
}

func (m *Model) sendText() tea.Cmd {
	rs := m.room
	text := rs.input.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	m.startSend()
	ctx, c, roomId := rs.ctx, rs.composer, rs.info.Id
	return func() tea.Msg {
		return sendResultMsg{roomId: roomId, err: c.SendText(ctx, text)}
	}
}

func (m *Model) sendFile() tea.Cmd {
	rs := m.room
	path := strings.TrimSpace(rs.path.Value())
	if path == "" {
		return nil
	}

	m.startSend()
	m.setInfo("Uploading " + filepath.Base(path) + "...")
	ctx, c, roomId := rs.ctx, rs.composer, rs.info.Id
	return func() tea.Msg {
		_, err := c.SendFilePath(ctx, path)
		return uploadResultMsg{roomId: roomId, name: filepath.Base(path), err: err}
	}
}

// startSend disables both inputs until the result arrives so nothing typed
// meanwhile is lost and the reply target cannot change.
func (m *Model) startSend() {
	rs := m.room
	rs.sending = true
	rs.input.Blur()
	rs.path.Blur()
}

// finishSend re-enables whichever input is active.
func (m *Model) finishSend() tea.Cmd {
	rs := m.room
	rs.sending = false
	if rs.uploading {
		return rs.path.Focus()
	}
	return rs.input.Focus()
}

func (m *Model) selectedView() (view.MessageView, bool) {
	rs := m.room
	if rs.selected < 0 || rs.selected >= len(rs.views) {
		return view.MessageView{}, false
	}
	return rs.views[rs.selected], true
}

func (m *Model) openAttachment(v view.MessageView) tea.Cmd {
	if v.File == nil {
		return nil
	}
	url := m.backend.URL(v.File.Url)
	open := m.open
	return func() tea.Msg {
		if err := open(url); err != nil {
			return actionResultMsg{err: fmt.Errorf("open attachment: %w", err)}
		}
		return actionResultMsg{info: "Opened " + v.File.Name}
	}
}

func (m *Model) downloadAttachment(v view.MessageView) tea.Cmd {
	if v.File == nil {
		return nil
	}
	ctx, backend, dir := m.room.ctx, m.backend, m.cfg.DownloadDir
	m.setInfo("Downloading " + v.File.Name + "...")
	return func() tea.Msg {
		f, err := createUnique(dir, v.File.Name)
		if err != nil {
			return actionResultMsg{err: err}
		}

		_, err = backend.Download(ctx, v.File.Url, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(f.Name())
			return actionResultMsg{err: err}
		}
		return actionResultMsg{info: "Saved " + f.Name()}
	}
}

// createUnique creates name in dir, appending " (n)" before the extension
// while the name is taken.
func createUnique(dir, name string) (*os.File, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		name = "download"
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for n := 1; ; n++ {
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create download: %w", err)
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
}

func (m *Model) setFocus(f focus) tea.Cmd {
	rs := m.room
	rs.focus = f
	if f == focusList {
		rs.input.Blur()
		rs.path.Blur()
		if rs.selected < 0 && len(rs.views) > 0 {
			rs.selected = len(rs.views) - 1
		}
		m.renderMessages()
		return nil
	}

	rs.selected = -1
	m.renderMessages()
	if rs.uploading {
		return rs.path.Focus()
	}
	return rs.input.Focus()
}

func (m *Model) updateRoom(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.room == nil {
		return m, nil
	}

	model, cmd := m.handleRoom(msg)
	if m.room != nil {
		m.fitRoom()
	}
	return model, cmd
}

func (m *Model) handleRoom(msg tea.Msg) (tea.Model, tea.Cmd) {
	rs := m.room

	switch msg := msg.(type) {
	case messagesMsg:
		if msg.room != rs {
			return m, nil
		}
		m.setMessages(msg.msgs)
		return m, waitForUpdate(rs.ctx, rs.updates)

	case onlineMsg:
		if msg.room != rs {
			return m, nil
		}
		rs.online = msg.count
		return m, waitForUpdate(rs.ctx, rs.updates)

	case sendResultMsg:
		if msg.roomId != rs.info.Id {
			return m, nil
		}
		if msg.err != nil {
			m.setError(msg.err)
			return m, m.finishSend()
		}
		rs.input.Reset()
		m.clearStatus()
		return m, m.finishSend()

	case uploadResultMsg:
		if msg.roomId != rs.info.Id {
			return m, nil
		}
		if msg.err != nil {
			m.setError(msg.err)
			return m, m.finishSend()
		}
		rs.uploading = false
		rs.path.Reset()
		m.setInfo("Uploaded " + msg.name)
		return m, m.finishSend()

	case actionResultMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setInfo(msg.info)
		}
		return m, nil

	case tea.KeyMsg:
		return m.roomKey(msg)
	}

	return m.updateInputs(msg)
}

func (m *Model) roomKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rs := m.room

	switch {
	case key.Matches(msg, keys.Leave):
		return m, m.leaveRoom()

	case msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown:
		var cmd tea.Cmd
		rs.viewport, cmd = rs.viewport.Update(msg)
		return m, cmd
	}

	if rs.sending {
		if key.Matches(msg, keys.Submit) {
			m.setError(composer.ErrBusy)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Back):
		switch {
		case rs.uploading:
			rs.uploading = false
			rs.path.Reset()
			rs.path.Blur()
			m.clearStatus()
			return m, rs.input.Focus()
		case m.hasReply():
			m.sess.ClearReplyTarget()
		case rs.focus == focusList:
			return m, m.setFocus(focusInput)
		}
		return m, nil

	case key.Matches(msg, keys.Focus):
		if rs.focus == focusInput {
			return m, m.setFocus(focusList)
		}
		return m, m.setFocus(focusInput)

	case key.Matches(msg, keys.Attach):
		rs.uploading = !rs.uploading
		m.clearStatus()
		rs.focus = focusInput
		rs.selected = -1
		m.renderMessages()
		if rs.uploading {
			rs.input.Blur()
			return m, rs.path.Focus()
		}
		rs.path.Reset()
		rs.path.Blur()
		return m, rs.input.Focus()
	}

	if rs.focus == focusList {
		return m.listKey(msg)
	}

	if key.Matches(msg, keys.Submit) {
		if rs.composer.Busy() {
			m.setError(composer.ErrBusy)
			return m, nil
		}
		if rs.uploading {
			return m, m.sendFile()
		}
		return m, m.sendText()
	}

	return m.updateInputs(msg)
}

func (m *Model) listKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rs := m.room

	switch {
	case key.Matches(msg, keys.Up):
		if rs.selected > 0 {
			rs.selected--
			m.renderMessages()
		}
	case key.Matches(msg, keys.Down):
		if rs.selected < len(rs.views)-1 {
			rs.selected++
			m.renderMessages()
		}
	case key.Matches(msg, keys.Reply):
		if v, ok := m.selectedView(); ok {
			m.sess.SetReplyTarget(v.Message)
			return m, m.setFocus(focusInput)
		}
	case key.Matches(msg, keys.View):
		if v, ok := m.selectedView(); ok {
			return m, m.openAttachment(v)
		}
	case key.Matches(msg, keys.Download):
		if v, ok := m.selectedView(); ok {
			return m, m.downloadAttachment(v)
		}
	}
	return m, nil
}

func (m *Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	rs := m.room
	var cmd tea.Cmd
	if rs.uploading {
		rs.path, cmd = rs.path.Update(msg)
	} else {
		rs.input, cmd = rs.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) hasReply() bool {
	_, ok := m.sess.ReplyTarget()
	return ok
}

func (m *Model) roomHeader() string {
	rs := m.room
	title := titleStyle.Render(view.Sanitize(directory.Title(rs.info)))
	if rs.info.IsLocked {
		title += "  " + lockedStyle.Render("Locked")
	}
	title += "  " + mutedStyle.Render(onlineLabel(rs.online))
	return title
}

func (m *Model) roomFooter() string {
	rs := m.room
	var lines []string

	if target, ok := m.sess.ReplyTarget(); ok {
		sender := target.AnonymousId
		if sender == "" {
			sender = "Anonymous"
		}
		lines = append(lines, replyStyle.Render(view.Sanitize("Replying to "+sender+": "+view.Preview(target))+"  (esc to cancel)"))
	}
	if s := m.statusLine(); s != "" {
		lines = append(lines, s)
	}

	if rs.uploading {
		lines = append(lines, "Attach: "+rs.path.View())
	} else {
		lines = append(lines, rs.input.View())
	}

	var help string
	switch {
	case rs.focus == focusList:
		help = helpLine(keys.Up, keys.Down, keys.Reply, keys.View, keys.Download, keys.Back, keys.Leave)
	case rs.uploading:
		help = helpLine(key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "upload")), keys.Back, keys.Leave)
	default:
		help = helpLine(keys.Submit, keys.Focus, keys.Attach, keys.Leave, keys.Quit)
	}
	lines = append(lines, mutedStyle.Render(help))

	return strings.Join(lines, "\n")
}

func (m *Model) viewRoom() string {
	if m.room == nil {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.roomHeader(),
		m.room.viewport.View(),
		m.roomFooter(),
	)
}
