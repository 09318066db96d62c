package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/npezzotti/anon-chat/internal/chatapi"
	"github.com/npezzotti/anon-chat/internal/testutil"
	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) GetRooms(ctx context.Context) ([]types.Room, error) {
	args := m.Called()
	rooms, _ := args.Get(0).([]types.Room)
	return rooms, args.Error(1)
}

func (m *mockBackend) GetOnlineUsers(ctx context.Context, roomId string) (int, error) {
	args := m.Called(roomId)
	return args.Int(0), args.Error(1)
}

func (m *mockBackend) VerifyRoomPassword(ctx context.Context, roomId, password string) error {
	args := m.Called(roomId, password)
	return args.Error(0)
}

var testRooms = []types.Room{
	{Id: "general", Name: "General"},
	{Id: "secret-club", Name: "Secret Club", IsLocked: true},
	{Id: "quiet", Name: "Quiet"},
}

func TestDirectory_Load(t *testing.T) {
	api := &mockBackend{}
	defer api.AssertExpectations(t)
	api.On("GetRooms").Return(testRooms, nil).Once()
	api.On("GetOnlineUsers", "general").Return(3, nil).Once()
	api.On("GetOnlineUsers", "secret-club").Return(0, errors.New("timeout")).Once()
	api.On("GetOnlineUsers", "quiet").Return(0, nil).Once()

	d := New(api, testutil.TestLogger(t))
	entries, err := d.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "general", entries[0].Room.Id, "expected backend order to be kept")
	assert.Equal(t, 3, entries[0].Online)
	assert.Equal(t, -1, entries[1].Online, "expected failed count to be unknown")
	assert.Equal(t, 0, entries[2].Online)
	assert.Equal(t, "Locked", entries[1].Status())
	assert.Equal(t, "Public", entries[2].Status())
}

func TestDirectory_LoadFailure(t *testing.T) {
	api := &mockBackend{}
	api.On("GetRooms").Return(nil, &chatapi.TransportError{Op: "get rooms", Err: errors.New("refused")})

	d := New(api, testutil.TestLogger(t))
	_, err := d.Load(context.Background())

	var te *chatapi.TransportError
	assert.True(t, errors.As(err, &te))
	api.AssertNotCalled(t, "GetOnlineUsers", mock.Anything)
}

func TestDirectory_Find(t *testing.T) {
	api := &mockBackend{}
	api.On("GetRooms").Return(testRooms, nil)
	d := New(api, testutil.TestLogger(t))

	r, err := d.Find(context.Background(), "secret-club")
	require.NoError(t, err)
	assert.True(t, r.IsLocked)

	_, err = d.Find(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestDirectory_Unlock(t *testing.T) {
	tcases := []struct {
		name     string
		password string
		apiErr   error
		called   bool
		wantErr  bool
	}{
		{name: "correct", password: "pw", called: true},
		{name: "incorrect", password: "bad", apiErr: &chatapi.AppError{Op: "verify room password", StatusCode: 200, Message: "Incorrect password"}, called: true, wantErr: true},
		{name: "blank", password: "  ", wantErr: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			api := &mockBackend{}
			defer api.AssertExpectations(t)
			if tc.called {
				api.On("VerifyRoomPassword", "secret-club", tc.password).Return(tc.apiErr).Once()
			}

			err := New(api, testutil.TestLogger(t)).Unlock(context.Background(), "secret-club", tc.password)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRoute(t *testing.T) {
	assert.Equal(t, "/room/general", Route(types.Room{Id: "general"}))
	assert.Equal(t, "/room/secret-club/password", Route(types.Room{Id: "secret-club", IsLocked: true}))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "General", Title(types.Room{Id: "general", Name: "General"}))
	assert.Equal(t, "late night talk", Title(types.Room{Id: "late-night-talk"}))
}
