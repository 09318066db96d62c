package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/npezzotti/anon-chat/internal/admin"
	"github.com/npezzotti/anon-chat/internal/directory"
	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/npezzotti/anon-chat/internal/view"
	"github.com/spf13/cobra"
)

type adminFlags struct {
	root *rootFlags
	user string
}

func newAdminCmd(f *rootFlags) *cobra.Command {
	af := &adminFlags{root: f}

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage rooms",
		Long: "Manage rooms. Every command signs in first; the password is read from\n" +
			"ANONCHAT_ADMIN_PASSWORD or prompted for.",
	}

	user := os.Getenv("ANONCHAT_ADMIN_USER")
	if user == "" {
		user = "admin"
	}
	cmd.PersistentFlags().StringVar(&af.user, "user", user, "admin username")

	cmd.AddCommand(
		newAdminLoginCmd(af),
		newAdminRoomsCmd(af),
		newAdminCreateCmd(af),
		newAdminUpdateCmd(af),
		newAdminDeleteCmd(af),
	)
	return cmd
}

// signIn builds the app and logs in. The session cookie only lives as long
// as the process.
func (af *adminFlags) signIn(ctx context.Context) (*app, *admin.Admin, error) {
	a, err := newApp(af.root, false)
	if err != nil {
		return nil, nil, err
	}

	pw := os.Getenv("ANONCHAT_ADMIN_PASSWORD")
	if pw == "" {
		if pw, err = readPassword("Password for " + af.user + ": "); err != nil {
			a.Close()
			return nil, nil, err
		}
	}

	adm := admin.New(a.client, a.log)
	if err := adm.Login(ctx, af.user, pw); err != nil {
		a.Close()
		return nil, nil, fmt.Errorf("sign in: %w", err)
	}
	return a, adm, nil
}

func newAdminLoginCmd(af *adminFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check the admin credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := af.signIn(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", af.user)
			return nil
		},
	}
}

func newAdminRoomsCmd(af *adminFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List rooms with their owners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, adm, err := af.signIn(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			rooms, err := adm.Rooms(cmd.Context())
			if err != nil {
				return err
			}
			printAdminRooms(cmd.OutOrStdout(), rooms)
			return nil
		},
	}
}

func printAdminRooms(w io.Writer, rooms []types.Room) {
	if len(rooms) == 0 {
		fmt.Fprintln(w, "No rooms yet.")
		return
	}

	t := table.New().Headers("ID", "NAME", "STATUS", "CREATED BY", "CREATED")
	for _, r := range rooms {
		status := "Public"
		if r.IsLocked {
			status = "Locked"
		}
		created := ""
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.Format("2006-01-02 15:04")
		}
		t.Row(view.Sanitize(r.Id), view.Sanitize(directory.Title(r)), status, view.Sanitize(r.CreatedBy), created)
	}
	fmt.Fprintln(w, t.Render())
}

// roomPassword reads the password for a locked room being created or edited.
func roomPassword() (string, error) {
	if pw := os.Getenv("ANONCHAT_ROOM_PASSWORD"); pw != "" {
		return pw, nil
	}
	return readPassword("Room password: ")
}

type roomFlags struct {
	name        string
	description string
	locked      bool
}

func (rf *roomFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&rf.name, "name", "", "room name")
	cmd.Flags().StringVar(&rf.description, "description", "", "room description")
	cmd.Flags().BoolVar(&rf.locked, "locked", false, "require a password to enter")
}

func newAdminCreateCmd(af *adminFlags) *cobra.Command {
	rf := &roomFlags{}

	cmd := &cobra.Command{
		Use:   "create --name NAME",
		Short: "Create a room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form := admin.RoomForm{Name: rf.name, Description: rf.description, Locked: rf.locked}
			if err := form.Validate(); err != nil && !errors.Is(err, admin.ErrPasswordRequired) {
				return err
			}

			a, adm, err := af.signIn(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if form.Locked {
				if form.Password, err = roomPassword(); err != nil {
					return err
				}
			}

			id, err := adm.Create(cmd.Context(), form)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created room %s.\n", id)
			return nil
		},
	}

	rf.register(cmd)
	return cmd
}

func newAdminUpdateCmd(af *adminFlags) *cobra.Command {
	rf := &roomFlags{}

	cmd := &cobra.Command{
		Use:   "update ROOM_ID",
		Short: "Edit a room; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, adm, err := af.signIn(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			rooms, err := adm.Rooms(cmd.Context())
			if err != nil {
				return err
			}
			room, ok := findRoom(rooms, args[0])
			if !ok {
				return fmt.Errorf("%w: %s", directory.ErrRoomNotFound, args[0])
			}

			form := admin.Form(room)
			fl := cmd.Flags()
			if fl.Changed("name") {
				form.Name = rf.name
			}
			if fl.Changed("description") {
				form.Description = rf.description
			}
			if fl.Changed("locked") {
				form.Locked = rf.locked
			}
			if form.Locked {
				if form.Password, err = roomPassword(); err != nil {
					return err
				}
			}

			if err := adm.Update(cmd.Context(), room.Id, form); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated room %s.\n", room.Id)
			return nil
		},
	}

	rf.register(cmd)
	return cmd
}

func findRoom(rooms []types.Room, id string) (types.Room, bool) {
	for _, r := range rooms {
		if r.Id == id {
			return r, true
		}
	}
	return types.Room{}, false
}

func newAdminDeleteCmd(af *adminFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete ROOM_ID",
		Short: "Delete a room and all of its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomId := args[0]
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "Delete room "+roomId+" and all its messages? [y/N] ")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			a, adm, err := af.signIn(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := adm.Delete(cmd.Context(), roomId); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted room %s.\n", roomId)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
