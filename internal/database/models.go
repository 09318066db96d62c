package database

import "time"

type Room struct {
	Id           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	IsLocked     bool      `json:"is_locked"`
	PasswordHash string    `json:"password_hash,omitempty"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ReplySnapshot struct {
	Id          string `json:"id"`
	AnonymousId string `json:"anonymous_id"`
	Text        string `json:"text"`
	FileName    string `json:"file_name"`
	FileType    string `json:"file_type"`
}

type Message struct {
	Id          string         `json:"id"`
	RoomId      string         `json:"room_id"`
	AnonymousId string         `json:"anonymous_id"`
	Text        string         `json:"text"`
	FileUrl     string         `json:"file_url"`
	FileName    string         `json:"file_name"`
	FileSize    int64          `json:"file_size"`
	FileType    string         `json:"file_type"`
	ParentId    string         `json:"parent_id"`
	ReplyTo     *ReplySnapshot `json:"reply_to,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type CreateRoomParams struct {
	Id           string
	Name         string
	Description  string
	IsLocked     bool
	PasswordHash string
	CreatedBy    string
}

// UpdateRoomParams replaces a room's metadata. A nil PasswordHash keeps the
// stored one.
type UpdateRoomParams struct {
	Id           string
	Name         string
	Description  string
	IsLocked     bool
	PasswordHash *string
}

type CreateMessageParams struct {
	RoomId      string
	AnonymousId string
	Text        string
	FileUrl     string
	FileName    string
	FileSize    int64
	FileType    string
	ParentId    string
	ReplyTo     *ReplySnapshot
}
