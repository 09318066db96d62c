package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// Key layout:
//
//	room/<roomId>                  JSON Room
//	msg/<roomId>/<%020d seq>       JSON Message
//	meta/seq                       last assigned message sequence
const (
	roomPrefix = "room/"
	msgPrefix  = "msg/"
	seqKey     = "meta/seq"
)

// PebbleChatRepository stores rooms and messages in an embedded Pebble
// database. Message ids come from a single store-wide sequence, so keys within
// a room sort in insertion order.
type PebbleChatRepository struct {
	db *pebble.DB

	mu  sync.Mutex
	seq uint64
}

func NewPebbleChatRepository(dir string) (*PebbleChatRepository, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}

	r := &PebbleChatRepository{db: db}
	if err := r.loadSeq(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *PebbleChatRepository) loadSeq() error {
	data, closer, err := r.db.Get([]byte(seqKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read sequence: %w", err)
	}
	defer closer.Close()

	seq, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parse sequence: %w", err)
	}
	r.seq = seq
	return nil
}

func roomKey(id string) []byte {
	return []byte(roomPrefix + id)
}

func roomMessagesPrefix(roomId string) []byte {
	return []byte(msgPrefix + roomId + "/")
}

func messageKey(roomId string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", msgPrefix, roomId, seq))
}

// prefixUpperBound returns the smallest key greater than every key starting
// with prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (r *PebbleChatRepository) get(key []byte, v any) error {
	data, closer, err := r.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()

	return json.Unmarshal(data, v)
}

func (r *PebbleChatRepository) scan(prefix []byte, fn func(value []byte) error) error {
	iter, err := r.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (r *PebbleChatRepository) Ping(ctx context.Context) error {
	_, closer, err := r.db.Get([]byte(seqKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return closer.Close()
}

func (r *PebbleChatRepository) Close() error {
	return r.db.Close()
}

func (r *PebbleChatRepository) ListRooms(ctx context.Context) ([]Room, error) {
	rooms := make([]Room, 0)
	err := r.scan([]byte(roomPrefix), func(v []byte) error {
		var room Room
		if err := json.Unmarshal(v, &room); err != nil {
			return fmt.Errorf("decode room: %w", err)
		}
		rooms = append(rooms, room)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (r *PebbleChatRepository) GetRoom(ctx context.Context, id string) (Room, error) {
	var room Room
	err := r.get(roomKey(id), &room)
	return room, err
}

func (r *PebbleChatRepository) RoomExists(ctx context.Context, id string) (bool, error) {
	_, err := r.GetRoom(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *PebbleChatRepository) putRoom(room Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return r.db.Set(roomKey(room.Id), data, pebble.Sync)
}

func (r *PebbleChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.RoomExists(ctx, params.Id)
	if err != nil {
		return Room{}, err
	}
	if exists {
		return Room{}, fmt.Errorf("room %q already exists", params.Id)
	}

	now := time.Now().UTC()
	room := Room{
		Id:           params.Id,
		Name:         params.Name,
		Description:  params.Description,
		IsLocked:     params.IsLocked,
		PasswordHash: params.PasswordHash,
		CreatedBy:    params.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.putRoom(room); err != nil {
		return Room{}, err
	}
	return room, nil
}

func (r *PebbleChatRepository) UpdateRoom(ctx context.Context, params UpdateRoomParams) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.GetRoom(ctx, params.Id)
	if err != nil {
		return Room{}, err
	}

	room.Name = params.Name
	room.Description = params.Description
	room.IsLocked = params.IsLocked
	if params.PasswordHash != nil {
		room.PasswordHash = *params.PasswordHash
	}
	room.UpdatedAt = time.Now().UTC()

	if err := r.putRoom(room); err != nil {
		return Room{}, err
	}
	return room, nil
}

func (r *PebbleChatRepository) DeleteRoom(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.GetRoom(ctx, id); err != nil {
		return err
	}

	batch := r.db.NewBatch()
	defer batch.Close()

	prefix := roomMessagesPrefix(id)
	if err := batch.DeleteRange(prefix, prefixUpperBound(prefix), nil); err != nil {
		return err
	}
	if err := batch.Delete(roomKey(id), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (r *PebbleChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.GetRoom(ctx, params.RoomId); err != nil {
		return Message{}, err
	}

	seq := r.seq + 1
	msg := Message{
		Id:          strconv.FormatUint(seq, 10),
		RoomId:      params.RoomId,
		AnonymousId: params.AnonymousId,
		Text:        params.Text,
		FileUrl:     params.FileUrl,
		FileName:    params.FileName,
		FileSize:    params.FileSize,
		FileType:    params.FileType,
		ParentId:    params.ParentId,
		ReplyTo:     params.ReplyTo,
		CreatedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return Message{}, err
	}

	batch := r.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(messageKey(msg.RoomId, seq), data, nil); err != nil {
		return Message{}, err
	}
	if err := batch.Set([]byte(seqKey), []byte(strconv.FormatUint(seq, 10)), nil); err != nil {
		return Message{}, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return Message{}, err
	}

	r.seq = seq
	return msg, nil
}

func (r *PebbleChatRepository) GetMessage(ctx context.Context, roomId, id string) (Message, error) {
	seq, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return Message{}, ErrNotFound
	}

	var msg Message
	err = r.get(messageKey(roomId, seq), &msg)
	return msg, err
}

func (r *PebbleChatRepository) ListMessages(ctx context.Context, roomId string) ([]Message, error) {
	messages := make([]Message, 0)
	err := r.scan(roomMessagesPrefix(roomId), func(v []byte) error {
		var m Message
		if err := json.Unmarshal(v, &m); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		messages = append(messages, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}
