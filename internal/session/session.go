// Package session holds the client-local state of one running client: the
// anonymous identity, the room being viewed and the reply target. Nothing in
// it outlives the process.
package session

import (
	"sync"

	"github.com/npezzotti/anon-chat/internal/types"
)

type Session struct {
	anonymousId string

	mu    sync.RWMutex
	room  string
	reply *types.Message
}

func New(anonymousId string) *Session {
	return &Session{anonymousId: anonymousId}
}

func (s *Session) AnonymousId() string {
	return s.anonymousId
}

// IsOwn reports whether m was sent by this session. Purely cosmetic.
func (s *Session) IsOwn(m types.Message) bool {
	return m.AnonymousId != "" && m.AnonymousId == s.anonymousId
}

func (s *Session) Room() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

// EnterRoom switches the current room and drops any reply target, which
// belongs to the previous room.
func (s *Session) EnterRoom(roomId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = roomId
	s.reply = nil
}

func (s *Session) LeaveRoom() {
	s.EnterRoom("")
}

// SetReplyTarget replaces the current reply target, if any.
func (s *Session) SetReplyTarget(m types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = &m
}

func (s *Session) ReplyTarget() (types.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reply == nil {
		return types.Message{}, false
	}
	return *s.reply, true
}

func (s *Session) ClearReplyTarget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = nil
}
