// Package view turns polled messages into a typed view-model and draws it
// for the terminal. Building is a pure function of its inputs; every render
// rebuilds the whole list.
package view

import (
	"time"

	"github.com/npezzotti/anon-chat/internal/types"
)

type Kind int

const (
	KindText Kind = iota
	KindImage
	KindVideo
	KindAudio
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindDocument:
		return "document"
	default:
		return "text"
	}
}

// Classify derives the content kind from the backend's file_type. Unknown or
// missing types on an attachment fall back to a document card.
func Classify(m types.Message) Kind {
	if !m.HasFile() {
		return KindText
	}

	switch m.FileType {
	case types.FileTypeImage:
		return KindImage
	case types.FileTypeVideo:
		return KindVideo
	case types.FileTypeAudio:
		return KindAudio
	default:
		return KindDocument
	}
}

const (
	anonymousSender = "Anonymous"
	unknownSender   = "Unknown"
	missingReply    = "Message not found"
)

// Reply is the quoted parent shown above a message.
type Reply struct {
	Sender string
	Text   string
}

// File describes an attachment. Size is already human readable.
type File struct {
	Url  string
	Name string
	Size string
}

type MessageView struct {
	Id     string
	Kind   Kind
	Own    bool
	Sender string
	Time   string
	Text   string
	File   *File
	Reply  *Reply

	// Message is the record the view was built from, kept so that
	// selecting a view can set it as the reply target.
	Message types.Message
}

// Owner decides which messages belong to the local session.
type Owner interface {
	IsOwn(m types.Message) bool
}

// Build maps msgs to views in order. Relative times are computed against now.
func Build(msgs []types.Message, owner Owner, now time.Time) []MessageView {
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, buildOne(m, owner, now))
	}
	return views
}

func buildOne(m types.Message, owner Owner, now time.Time) MessageView {
	v := MessageView{
		Id:      m.Id,
		Kind:    Classify(m),
		Own:     owner != nil && owner.IsOwn(m),
		Sender:  m.AnonymousId,
		Time:    FormatTime(m.Timestamp, now),
		Reply:   ReplyOf(m),
		Message: m,
	}
	if v.Sender == "" {
		v.Sender = anonymousSender
	}

	if v.Kind == KindText {
		v.Text = m.Text
		return v
	}

	v.File = &File{
		Url:  m.FileUrl,
		Name: m.FileName,
		Size: FormatFileSize(m.FileSize),
	}
	if v.File.Name == "" {
		v.File.Name = "Document"
	}
	return v
}

// ReplyOf builds the quote for m from its stored snapshot alone. The parent
// may since have been deleted.
func ReplyOf(m types.Message) *Reply {
	snap := m.ReplyToMessage
	if snap == nil {
		return nil
	}

	r := &Reply{Sender: snap.AnonymousId, Text: snap.Text}
	if r.Sender == "" {
		r.Sender = unknownSender
	}
	if r.Text == "" {
		r.Text = snap.FileName
	}
	if r.Text == "" {
		r.Text = missingReply
	}
	return r
}

// Preview is the one-line summary used by the reply indicator.
func Preview(m types.Message) string {
	switch {
	case m.Text != "":
		return m.Text
	case m.FileName != "":
		return m.FileName
	default:
		return "File"
	}
}
