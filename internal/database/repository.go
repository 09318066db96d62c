package database

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

type ChatRepository interface {
	Ping(ctx context.Context) error
	Close() error

	ListRooms(ctx context.Context) ([]Room, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	RoomExists(ctx context.Context, id string) (bool, error)
	CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error)
	UpdateRoom(ctx context.Context, params UpdateRoomParams) (Room, error)
	// DeleteRoom removes the room together with all of its messages.
	DeleteRoom(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessage(ctx context.Context, roomId, id string) (Message, error)
	// ListMessages returns the room's messages oldest first.
	ListMessages(ctx context.Context, roomId string) ([]Message, error)
}
