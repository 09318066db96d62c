// Package directory loads the room list with online counts and decides where
// selecting a room leads.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentCounts = 8

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrPasswordRequired = errors.New("password is required")
)

type Backend interface {
	GetRooms(ctx context.Context) ([]types.Room, error)
	GetOnlineUsers(ctx context.Context, roomId string) (int, error)
	VerifyRoomPassword(ctx context.Context, roomId, password string) error
}

// Entry is one row of the directory. Online is -1 when the count could not
// be loaded.
type Entry struct {
	Room   types.Room
	Online int
}

func (e Entry) Status() string {
	if e.Room.IsLocked {
		return "Locked"
	}
	return "Public"
}

type Directory struct {
	api Backend
	log zerolog.Logger
}

func New(api Backend, logger zerolog.Logger) *Directory {
	return &Directory{
		api: api,
		log: logger.With().Str("component", "directory").Logger(),
	}
}

// Load fetches the rooms and then their online counts concurrently. A failed
// count is logged and leaves that entry at -1; only the room list itself can
// fail the load.
func (d *Directory) Load(ctx context.Context) ([]Entry, error) {
	rooms, err := d.api.GetRooms(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(rooms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCounts)

	for i, r := range rooms {
		entries[i] = Entry{Room: r, Online: -1}
		g.Go(func() error {
			count, err := d.api.GetOnlineUsers(gctx, r.Id)
			if err != nil {
				d.log.Error().Err(err).Str("room_id", r.Id).Msg("load online count")
				return nil
			}
			entries[i].Online = count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Find returns the room with the given id from a fresh listing.
func (d *Directory) Find(ctx context.Context, roomId string) (types.Room, error) {
	rooms, err := d.api.GetRooms(ctx)
	if err != nil {
		return types.Room{}, err
	}
	for _, r := range rooms {
		if r.Id == roomId {
			return r, nil
		}
	}
	return types.Room{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomId)
}

// Unlock checks password against a locked room.
func (d *Directory) Unlock(ctx context.Context, roomId, password string) error {
	if strings.TrimSpace(password) == "" {
		return ErrPasswordRequired
	}
	return d.api.VerifyRoomPassword(ctx, roomId, password)
}

// Route is the path a room selection navigates to: the password screen for
// locked rooms, the room view otherwise.
func Route(r types.Room) string {
	if r.IsLocked {
		return "/room/" + r.Id + "/password"
	}
	return "/room/" + r.Id
}

// Title is the room's name, or its id made readable when the name is unknown.
func Title(r types.Room) string {
	if r.Name != "" {
		return r.Name
	}
	return strings.ReplaceAll(r.Id, "-", " ")
}
