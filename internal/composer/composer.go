// Package composer submits text messages and file attachments for the
// current room, carrying the session's reply target along.
package composer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/npezzotti/anon-chat/internal/chatapi"
	"github.com/npezzotti/anon-chat/internal/session"
	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/rs/zerolog"
)

// MaxUploadSize is the default client-side ceiling for attachments.
const MaxUploadSize int64 = 50 << 20

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrFileTooLarge = errors.New("file is too large")
	ErrBusy         = errors.New("a submission is already in progress")
	ErrNoRoom       = errors.New("not in a room")
)

type Backend interface {
	SendMessage(ctx context.Context, req types.SendMessageRequest) error
	UploadFile(ctx context.Context, up chatapi.Upload) (string, error)
}

// Invalidator is told to refresh the message list after a successful
// submission.
type Invalidator interface {
	Invalidate()
}

type Composer struct {
	api      Backend
	sess     *session.Session
	feed     Invalidator
	maxBytes int64
	log      zerolog.Logger

	busy atomic.Bool
}

type Option func(*Composer)

func WithMaxUploadSize(n int64) Option {
	return func(c *Composer) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

func New(api Backend, sess *session.Session, feed Invalidator, logger zerolog.Logger, opts ...Option) *Composer {
	c := &Composer{
		api:      api,
		sess:     sess,
		feed:     feed,
		maxBytes: MaxUploadSize,
		log:      logger.With().Str("component", "composer").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Busy reports whether a submission is in flight. Input controls are
// disabled while it is true.
func (c *Composer) Busy() bool {
	return c.busy.Load()
}

func (c *Composer) MaxUploadSize() int64 {
	return c.maxBytes
}

func (c *Composer) begin() (string, error) {
	room := c.sess.Room()
	if room == "" {
		return "", ErrNoRoom
	}
	if !c.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	return room, nil
}

func (c *Composer) end() {
	c.busy.Store(false)
}

func (c *Composer) parentId() string {
	if m, ok := c.sess.ReplyTarget(); ok {
		return m.Id
	}
	return ""
}

// succeeded clears the reply target and forces the feed to render on its
// next poll.
func (c *Composer) succeeded() {
	c.sess.ClearReplyTarget()
	if c.feed != nil {
		c.feed.Invalidate()
	}
}

// SendText posts text to the current room. Blank input is rejected without
// a request. On failure the reply target is kept so the caller can retry.
func (c *Composer) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	room, err := c.begin()
	if err != nil {
		return err
	}
	defer c.end()

	err = c.api.SendMessage(ctx, types.SendMessageRequest{
		RoomId:      room,
		Message:     text,
		AnonymousId: c.sess.AnonymousId(),
		ParentId:    c.parentId(),
	})
	if err != nil {
		c.log.Error().Err(err).Str("room_id", room).Msg("send message")
		return err
	}

	c.succeeded()
	return nil
}

// SendFile uploads size bytes read from r under name. Files larger than the
// ceiling are rejected before anything is sent.
func (c *Composer) SendFile(ctx context.Context, name string, size int64, r io.Reader) (string, error) {
	if size > c.maxBytes {
		return "", fmt.Errorf("%w: %s exceeds the %d MB limit", ErrFileTooLarge, name, c.maxBytes>>20)
	}

	room, err := c.begin()
	if err != nil {
		return "", err
	}
	defer c.end()

	fileUrl, err := c.api.UploadFile(ctx, chatapi.Upload{
		RoomId:      room,
		AnonymousId: c.sess.AnonymousId(),
		ParentId:    c.parentId(),
		FileName:    name,
		Content:     io.LimitReader(r, c.maxBytes),
	})
	if err != nil {
		c.log.Error().Err(err).Str("room_id", room).Str("file", name).Msg("upload file")
		return "", err
	}

	c.succeeded()
	return fileUrl, nil
}

// SendFilePath opens path and uploads it with its base name.
func (c *Composer) SendFilePath(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat attachment: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("open attachment: %s is a directory", path)
	}

	return c.SendFile(ctx, filepath.Base(path), info.Size(), f)
}
