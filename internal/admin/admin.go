// Package admin drives room administration: signing in, and creating,
// editing and deleting rooms.
package admin

import (
	"context"
	"errors"
	"strings"

	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/rs/zerolog"
)

var (
	ErrNameRequired        = errors.New("room name is required")
	ErrPasswordRequired    = errors.New("please enter a password for the locked room")
	ErrRoomIdRequired      = errors.New("room id is required")
	ErrCredentialsRequired = errors.New("username and password are required")
)

type Backend interface {
	AdminLogin(ctx context.Context, username, password string) error
	GetRooms(ctx context.Context) ([]types.Room, error)
	CreateRoom(ctx context.Context, req types.CreateRoomRequest) (string, error)
	UpdateRoom(ctx context.Context, req types.UpdateRoomRequest) error
	DeleteRoom(ctx context.Context, roomId string) error
}

// RoomForm is the create/edit form. Password is only sent for locked rooms.
type RoomForm struct {
	Name        string
	Description string
	Locked      bool
	Password    string
}

func (f RoomForm) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrNameRequired
	}
	if f.Locked && f.Password == "" {
		return ErrPasswordRequired
	}
	return nil
}

func (f RoomForm) password() string {
	if !f.Locked {
		return ""
	}
	return f.Password
}

type Admin struct {
	api Backend
	log zerolog.Logger
}

func New(api Backend, logger zerolog.Logger) *Admin {
	return &Admin{
		api: api,
		log: logger.With().Str("component", "admin").Logger(),
	}
}

func (a *Admin) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrCredentialsRequired
	}
	if err := a.api.AdminLogin(ctx, username, password); err != nil {
		return err
	}
	a.log.Info().Str("username", username).Msg("signed in")
	return nil
}

func (a *Admin) Rooms(ctx context.Context) ([]types.Room, error) {
	return a.api.GetRooms(ctx)
}

// Create validates f and returns the id the backend assigned.
func (a *Admin) Create(ctx context.Context, f RoomForm) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}

	id, err := a.api.CreateRoom(ctx, types.CreateRoomRequest{
		RoomName:        strings.TrimSpace(f.Name),
		RoomDescription: f.Description,
		IsLocked:        f.Locked,
		RoomPassword:    f.password(),
	})
	if err != nil {
		return "", err
	}

	a.log.Info().Str("room_id", id).Msg("room created")
	return id, nil
}

func (a *Admin) Update(ctx context.Context, roomId string, f RoomForm) error {
	if roomId == "" {
		return ErrRoomIdRequired
	}
	if err := f.Validate(); err != nil {
		return err
	}

	err := a.api.UpdateRoom(ctx, types.UpdateRoomRequest{
		RoomId:          roomId,
		RoomName:        strings.TrimSpace(f.Name),
		RoomDescription: f.Description,
		IsLocked:        f.Locked,
		RoomPassword:    f.password(),
	})
	if err != nil {
		return err
	}

	a.log.Info().Str("room_id", roomId).Msg("room updated")
	return nil
}

func (a *Admin) Delete(ctx context.Context, roomId string) error {
	if roomId == "" {
		return ErrRoomIdRequired
	}
	if err := a.api.DeleteRoom(ctx, roomId); err != nil {
		return err
	}

	a.log.Info().Str("room_id", roomId).Msg("room deleted")
	return nil
}

// Form returns an edit form prefilled from r. The password is never known
// to the client and must be entered again for locked rooms.
func Form(r types.Room) RoomForm {
	return RoomForm{
		Name:        r.Name,
		Description: r.Description,
		Locked:      r.IsLocked,
	}
}
