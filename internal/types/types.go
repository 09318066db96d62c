package types

import (
	"time"
)

// FileType is the backend's classification of an attachment. It drives
// rendering; clients never sniff extensions themselves.
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeDocument FileType = "document"
)

type Room struct {
	Id          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsLocked    bool      `json:"is_locked"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// ReplySnapshot is a copy of the parent message taken when the reply was
// stored. It stays valid after the parent is deleted.
type ReplySnapshot struct {
	Id          string   `json:"id,omitempty"`
	AnonymousId string   `json:"anonymous_id,omitempty"`
	Text        string   `json:"text,omitempty"`
	FileName    string   `json:"file_name,omitempty"`
	FileType    FileType `json:"file_type,omitempty"`
}

type Message struct {
	Id             string         `json:"id"`
	AnonymousId    string         `json:"anonymous_id,omitempty"`
	Text           string         `json:"text,omitempty"`
	FileUrl        string         `json:"file_url,omitempty"`
	FileName       string         `json:"file_name,omitempty"`
	FileSize       int64          `json:"file_size,omitempty"`
	FileType       FileType       `json:"file_type,omitempty"`
	Timestamp      string         `json:"timestamp"`
	ParentId       string         `json:"parent_id,omitempty"`
	ReplyToMessage *ReplySnapshot `json:"reply_to_message,omitempty"`
}

// HasFile reports whether the message carries an attachment.
func (m Message) HasFile() bool {
	return m.FileUrl != ""
}

// Snapshot returns the denormalized form stored on replies to m.
func (m Message) Snapshot() *ReplySnapshot {
	return &ReplySnapshot{
		Id:          m.Id,
		AnonymousId: m.AnonymousId,
		Text:        m.Text,
		FileName:    m.FileName,
		FileType:    m.FileType,
	}
}

type OnlineCount struct {
	Count int `json:"count"`
}

type SendMessageRequest struct {
	RoomId      string `json:"room_id"`
	Message     string `json:"message"`
	AnonymousId string `json:"anonymous_id"`
	ParentId    string `json:"parent_id,omitempty"`
}

type CreateRoomRequest struct {
	RoomName        string `json:"room_name"`
	RoomDescription string `json:"room_description"`
	IsLocked        bool   `json:"is_locked"`
	RoomPassword    string `json:"room_password"`
}

type UpdateRoomRequest struct {
	RoomId          string `json:"room_id"`
	RoomName        string `json:"room_name"`
	RoomDescription string `json:"room_description"`
	IsLocked        bool   `json:"is_locked"`
	RoomPassword    string `json:"room_password"`
}

type DeleteRoomRequest struct {
	RoomId string `json:"room_id"`
}

type VerifyRoomPasswordRequest struct {
	RoomId   string `json:"room_id"`
	Password string `json:"password"`
}

type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Result is the envelope every mutating endpoint answers with.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	RoomId  string `json:"room_id,omitempty"`
	FileUrl string `json:"file_url,omitempty"`
}
