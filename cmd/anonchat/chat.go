package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/npezzotti/anon-chat/internal/composer"
	"github.com/npezzotti/anon-chat/internal/directory"
	"github.com/npezzotti/anon-chat/internal/identity"
	"github.com/npezzotti/anon-chat/internal/session"
	"github.com/npezzotti/anon-chat/internal/tui"
	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/npezzotti/anon-chat/internal/view"
	"github.com/spf13/cobra"
)

func newChatCmd(f *rootFlags) *cobra.Command {
	var room string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(f, true)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := newSession()
			if err != nil {
				return err
			}
			a.log.Info().Str("anonymous_id", sess.AnonymousId()).Str("server", a.cfg.ServerURL).Msg("starting chat")

			var opts []tui.Option
			if room != "" {
				opts = append(opts, tui.WithInitialRoom(room))
			}
			return tui.Run(tui.New(a.client, sess, a.cfg, a.log, opts...))
		},
	}

	cmd.Flags().StringVar(&room, "room", "", "open this room directly")
	return cmd
}

func newSession() (*session.Session, error) {
	id, err := identity.New()
	if err != nil {
		return nil, fmt.Errorf("anonymous id: %w", err)
	}
	return session.New(id), nil
}

func newRoomsCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List chat rooms with their online counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(f, false)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := directory.New(a.client, a.log).Load(cmd.Context())
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
}

func printEntries(w io.Writer, entries []directory.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No rooms available.")
		return
	}

	t := table.New().Headers("ID", "NAME", "STATUS", "ONLINE", "DESCRIPTION")
	for _, e := range entries {
		online := "?"
		if e.Online >= 0 {
			online = strconv.Itoa(e.Online)
		}
		t.Row(
			view.Sanitize(e.Room.Id),
			view.Sanitize(directory.Title(e.Room)),
			e.Status(),
			online,
			view.Sanitize(e.Room.Description),
		)
	}
	fmt.Fprintln(w, t.Render())
}

type postFlags struct {
	room  string
	reply string
}

func (p *postFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.room, "room", "", "room id")
	cmd.Flags().StringVar(&p.reply, "reply", "", "id of the message to reply to")
	_ = cmd.MarkFlagRequired("room")
}

// joinRoom resolves roomId, asks for the password of locked rooms and
// returns a fresh session inside the room.
func (a *app) joinRoom(ctx context.Context, p *postFlags) (*session.Session, error) {
	dir := directory.New(a.client, a.log)

	room, err := dir.Find(ctx, p.room)
	if err != nil {
		return nil, err
	}

	if room.IsLocked {
		pw := os.Getenv("ANONCHAT_ROOM_PASSWORD")
		if pw == "" {
			if pw, err = readPassword("Password for " + directory.Title(room) + ": "); err != nil {
				return nil, err
			}
		}
		if err := dir.Unlock(ctx, room.Id, pw); err != nil {
			return nil, err
		}
	}

	sess, err := newSession()
	if err != nil {
		return nil, err
	}
	sess.EnterRoom(room.Id)
	if p.reply != "" {
		sess.SetReplyTarget(types.Message{Id: p.reply})
	}
	return sess, nil
}

func newSendCmd(f *rootFlags) *cobra.Command {
	p := &postFlags{}

	cmd := &cobra.Command{
		Use:   "send --room ROOM MESSAGE...",
		Short: "Send a text message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(f, false)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.joinRoom(cmd.Context(), p)
			if err != nil {
				return err
			}

			c := composer.New(a.client, sess, nil, a.log, composer.WithMaxUploadSize(a.cfg.MaxUploadBytes))
			if err := c.SendText(cmd.Context(), strings.Join(args, " ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Message sent.")
			return nil
		},
	}

	p.register(cmd)
	return cmd
}

func newUploadCmd(f *rootFlags) *cobra.Command {
	p := &postFlags{}

	cmd := &cobra.Command{
		Use:   "upload --room ROOM FILE",
		Short: "Upload a file to a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(f, false)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.joinRoom(cmd.Context(), p)
			if err != nil {
				return err
			}

			c := composer.New(a.client, sess, nil, a.log, composer.WithMaxUploadSize(a.cfg.MaxUploadBytes))
			fileUrl, err := c.SendFilePath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Uploaded:", a.client.URL(fileUrl))
			return nil
		},
	}

	p.register(cmd)
	return cmd
}
