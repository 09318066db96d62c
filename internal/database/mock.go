package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) ListRooms(ctx context.Context) ([]Room, error) {
	args := m.Called()
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockChatRepository) GetRoom(ctx context.Context, id string) (Room, error) {
	args := m.Called(id)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) RoomExists(ctx context.Context, id string) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}
func (m *MockChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) UpdateRoom(ctx context.Context, params UpdateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) DeleteRoom(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetMessage(ctx context.Context, roomId, id string) (Message, error) {
	args := m.Called(roomId, id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) ListMessages(ctx context.Context, roomId string) ([]Message, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Message), args.Error(1)
}
