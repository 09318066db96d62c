package view

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

var (
	colorOwn      = lipgloss.Color("#7D56F4")
	colorOther    = lipgloss.Color("#5384FF")
	colorMuted    = lipgloss.Color("#6C6C6C")
	colorSelected = lipgloss.Color("#FFCC00")
)

type Styles struct {
	OwnSender   lipgloss.Style
	OtherSender lipgloss.Style
	Time        lipgloss.Style
	Body        lipgloss.Style
	Reply       lipgloss.Style
	Attachment  lipgloss.Style
	Bubble      lipgloss.Style
	Selected    lipgloss.Style
	Empty       lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		OwnSender:   lipgloss.NewStyle().Foreground(colorOwn).Bold(true),
		OtherSender: lipgloss.NewStyle().Foreground(colorOther).Bold(true),
		Time:        lipgloss.NewStyle().Foreground(colorMuted),
		Body:        lipgloss.NewStyle(),
		Reply:       lipgloss.NewStyle().Foreground(colorMuted).Italic(true).PaddingLeft(1).Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(colorMuted),
		Attachment:  lipgloss.NewStyle().Underline(true),
		Bubble:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorMuted).Padding(0, 1),
		Selected:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorSelected).Padding(0, 1),
		Empty:       lipgloss.NewStyle().Foreground(colorMuted).Italic(true),
	}
}

// TerminalRenderer draws message views as chat bubbles. Own messages are
// right aligned, everyone else's left aligned.
type TerminalRenderer struct {
	width  int
	styles Styles
}

func NewTerminalRenderer(width int) *TerminalRenderer {
	return &TerminalRenderer{width: width, styles: DefaultStyles()}
}

func (r *TerminalRenderer) SetWidth(width int) {
	r.width = width
}

// Render draws every view; selected is the index of the highlighted message
// or -1.
func (r *TerminalRenderer) Render(views []MessageView, selected int) string {
	if len(views) == 0 {
		return r.styles.Empty.Render("No messages yet.")
	}

	blocks := make([]string, 0, len(views))
	for i, v := range views {
		blocks = append(blocks, r.renderOne(v, i == selected))
	}
	return strings.Join(blocks, "\n")
}

func (r *TerminalRenderer) bubbleWidth() int {
	w := r.width * 3 / 4
	if w < 20 {
		w = r.width
	}
	return w
}

func (r *TerminalRenderer) renderOne(v MessageView, selected bool) string {
	sender := r.styles.OtherSender
	if v.Own {
		sender = r.styles.OwnSender
	}

	lines := []string{
		sender.Render(Sanitize(v.Sender)) + "  " + r.styles.Time.Render(v.Time),
	}
	if v.Reply != nil {
		lines = append(lines, r.styles.Reply.Render(Sanitize(v.Reply.Sender)+": "+Sanitize(v.Reply.Text)))
	}
	lines = append(lines, r.content(v))

	bubble := r.styles.Bubble
	if selected {
		bubble = r.styles.Selected
	}
	// Width on a bordered style excludes the border itself.
	box := bubble.Width(r.bubbleWidth() - 2).Render(strings.Join(lines, "\n"))

	if v.Own && r.width > 0 {
		return lipgloss.PlaceHorizontal(r.width, lipgloss.Right, box)
	}
	return box
}

func (r *TerminalRenderer) content(v MessageView) string {
	if v.File == nil {
		return r.styles.Body.Render(Sanitize(v.Text))
	}

	name := Sanitize(v.File.Name)
	switch v.Kind {
	case KindImage:
		return "[image] " + r.styles.Attachment.Render(name) + "  (o: open full size)"
	case KindVideo:
		return "[video] " + r.styles.Attachment.Render(name) + "  (o: play)"
	case KindAudio:
		return "[audio] " + r.styles.Attachment.Render(name) + "  (o: play)"
	default:
		return "[file] " + r.styles.Attachment.Render(name) + "  " + v.File.Size + "  (d: download)"
	}
}

// Sanitize makes untrusted text inert on a terminal: escape sequences are
// stripped and remaining control characters other than newline are dropped.
func Sanitize(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}
