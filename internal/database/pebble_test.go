package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPebbleRepo(t *testing.T, dir string) *PebbleChatRepository {
	repo, err := NewPebbleChatRepository(dir)
	require.NoError(t, err)
	return repo
}

func TestPebbleChatRepository_Rooms(t *testing.T) {
	ctx := context.Background()
	repo := newPebbleRepo(t, t.TempDir())
	defer repo.Close()

	require.NoError(t, repo.Ping(ctx))

	rooms, err := repo.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	created, err := repo.CreateRoom(ctx, CreateRoomParams{Id: "general", Name: "General", CreatedBy: "admin"})
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = repo.CreateRoom(ctx, CreateRoomParams{Id: "vault", Name: "Vault", IsLocked: true, PasswordHash: "hash"})
	require.NoError(t, err)

	_, err = repo.CreateRoom(ctx, CreateRoomParams{Id: "general", Name: "Again"})
	assert.Error(t, err, "expected duplicate id to be rejected")

	rooms, err = repo.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "general", rooms[0].Id, "expected rooms in creation order")

	exists, err := repo.RoomExists(ctx, "vault")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.RoomExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.GetRoom(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPebbleChatRepository_UpdateRoom(t *testing.T) {
	ctx := context.Background()
	repo := newPebbleRepo(t, t.TempDir())
	defer repo.Close()

	_, err := repo.CreateRoom(ctx, CreateRoomParams{Id: "vault", Name: "Vault", IsLocked: true, PasswordHash: "old"})
	require.NoError(t, err)

	updated, err := repo.UpdateRoom(ctx, UpdateRoomParams{Id: "vault", Name: "The Vault", IsLocked: true})
	require.NoError(t, err)
	assert.Equal(t, "The Vault", updated.Name)
	assert.Equal(t, "old", updated.PasswordHash, "expected nil hash to keep the stored one")

	hash := "new"
	updated, err = repo.UpdateRoom(ctx, UpdateRoomParams{Id: "vault", Name: "The Vault", IsLocked: true, PasswordHash: &hash})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.PasswordHash)

	_, err = repo.UpdateRoom(ctx, UpdateRoomParams{Id: "missing", Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPebbleChatRepository_Messages(t *testing.T) {
	ctx := context.Background()
	repo := newPebbleRepo(t, t.TempDir())
	defer repo.Close()

	for _, id := range []string{"a", "ab"} {
		_, err := repo.CreateRoom(ctx, CreateRoomParams{Id: id, Name: id})
		require.NoError(t, err)
	}

	first, err := repo.CreateMessage(ctx, CreateMessageParams{RoomId: "a", AnonymousId: "user_1", Text: "hello"})
	require.NoError(t, err)
	_, err = repo.CreateMessage(ctx, CreateMessageParams{RoomId: "ab", AnonymousId: "user_2", Text: "other room"})
	require.NoError(t, err)
	reply, err := repo.CreateMessage(ctx, CreateMessageParams{
		RoomId:      "a",
		AnonymousId: "user_2",
		Text:        "hi back",
		ParentId:    first.Id,
		ReplyTo:     &ReplySnapshot{Id: first.Id, AnonymousId: "user_1", Text: "hello"},
	})
	require.NoError(t, err)

	_, err = repo.CreateMessage(ctx, CreateMessageParams{RoomId: "ghost", Text: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	msgs, err := repo.ListMessages(ctx, "a")
	require.NoError(t, err)
	require.Len(t, msgs, 2, "expected prefix scan to exclude room ab")
	assert.Equal(t, first.Id, msgs[0].Id)
	assert.Equal(t, reply.Id, msgs[1].Id)
	require.NotNil(t, msgs[1].ReplyTo)
	assert.Equal(t, "hello", msgs[1].ReplyTo.Text)

	got, err := repo.GetMessage(ctx, "a", first.Id)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)

	_, err = repo.GetMessage(ctx, "ab", first.Id)
	assert.ErrorIs(t, err, ErrNotFound, "expected lookup to be scoped to the room")
	_, err = repo.GetMessage(ctx, "a", "not-a-number")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPebbleChatRepository_DeleteRoom(t *testing.T) {
	ctx := context.Background()
	repo := newPebbleRepo(t, t.TempDir())
	defer repo.Close()

	for _, id := range []string{"a", "ab"} {
		_, err := repo.CreateRoom(ctx, CreateRoomParams{Id: id, Name: id})
		require.NoError(t, err)
		_, err = repo.CreateMessage(ctx, CreateMessageParams{RoomId: id, Text: "m"})
		require.NoError(t, err)
	}

	require.NoError(t, repo.DeleteRoom(ctx, "a"))
	assert.ErrorIs(t, repo.DeleteRoom(ctx, "a"), ErrNotFound)

	msgs, err := repo.ListMessages(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = repo.ListMessages(ctx, "ab")
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "expected sibling room to keep its messages")
}

func TestPebbleChatRepository_SequenceSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repo := newPebbleRepo(t, dir)
	_, err := repo.CreateRoom(ctx, CreateRoomParams{Id: "a", Name: "a"})
	require.NoError(t, err)
	first, err := repo.CreateMessage(ctx, CreateMessageParams{RoomId: "a", Text: "one"})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo = newPebbleRepo(t, dir)
	defer repo.Close()
	second, err := repo.CreateMessage(ctx, CreateMessageParams{RoomId: "a", Text: "two"})
	require.NoError(t, err)

	assert.NotEqual(t, first.Id, second.Id)
	msgs, err := repo.ListMessages(ctx, "a")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[1].Text)
}

func Test_prefixUpperBound(t *testing.T) {
	assert.Equal(t, []byte("msg/a0"), prefixUpperBound([]byte("msg/a/")))
	assert.Equal(t, []byte("b"), prefixUpperBound([]byte{'a', 0xff}))
	assert.Nil(t, prefixUpperBound([]byte{0xff}))
}
