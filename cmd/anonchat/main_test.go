package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/npezzotti/anon-chat/internal/api"
	"github.com/npezzotti/anon-chat/internal/chatapi"
	"github.com/npezzotti/anon-chat/internal/config"
	"github.com/npezzotti/anon-chat/internal/database"
	"github.com/npezzotti/anon-chat/internal/directory"
	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/npezzotti/anon-chat/internal/uploads"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) string {
	t.Helper()

	repo, err := database.NewPebbleChatRepository(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	files, err := uploads.NewStore(t.TempDir(), 1<<20)
	require.NoError(t, err)

	cfg := &config.Config{
		SigningKey:     []byte("test-signing-key"),
		AdminUsername:  "admin",
		AdminPassword:  "secret",
		MaxUploadBytes: 1 << 20,
	}
	app := api.NewAnonChatApp(http.NewServeMux(), zerolog.Nop(), repo, files, nil, nil, cfg)

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

// execute runs the CLI against server with stdin fed from in.
func execute(t *testing.T, server, in string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--server", server, "--log-level", "error"}, args...))
	cmd.SetIn(strings.NewReader(in))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := readPassword
	readPassword = func(string) (string, error) { return pw, nil }
	t.Cleanup(func() { readPassword = orig })
}

func messages(t *testing.T, server, roomId string) []types.Message {
	t.Helper()
	c, err := chatapi.New(server)
	require.NoError(t, err)
	msgs, err := c.GetMessages(t.Context(), roomId, "")
	require.NoError(t, err)
	return msgs
}

func TestCLI_PublicRoom(t *testing.T) {
	server := newBackend(t)
	t.Setenv("ANONCHAT_ADMIN_PASSWORD", "secret")

	out, err := execute(t, server, "", "rooms")
	require.NoError(t, err)
	assert.Equal(t, "No rooms available.\n", out)

	out, err = execute(t, server, "", "admin", "create", "--name", "Lobby", "--description", "Say hi")
	require.NoError(t, err)
	assert.Equal(t, "Created room lobby.\n", out)

	out, err = execute(t, server, "", "rooms")
	require.NoError(t, err)
	for _, want := range []string{"lobby", "Lobby", "Public", "Say hi"} {
		assert.Contains(t, out, want)
	}

	out, err = execute(t, server, "", "send", "--room", "lobby", "hello", "world")
	require.NoError(t, err)
	assert.Equal(t, "Message sent.\n", out)

	msgs := messages(t, server, "lobby")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello world", msgs[0].Text)
	assert.True(t, strings.HasPrefix(msgs[0].AnonymousId, "user_"))

	out, err = execute(t, server, "", "send", "--room", "lobby", "--reply", msgs[0].Id, "welcome")
	require.NoError(t, err)
	assert.Equal(t, "Message sent.\n", out)

	msgs = messages(t, server, "lobby")
	require.Len(t, msgs, 2)
	require.NotNil(t, msgs[1].ReplyToMessage)
	assert.Equal(t, "hello world", msgs[1].ReplyToMessage.Text)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some notes"), 0o600))

	out, err = execute(t, server, "", "upload", "--room", "lobby", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Uploaded: "+server+"/uploads/"), out)

	msgs = messages(t, server, "lobby")
	require.Len(t, msgs, 3)
	assert.Equal(t, "notes.txt", msgs[2].FileName)
	assert.Equal(t, types.FileTypeDocument, msgs[2].FileType)
}

func TestCLI_LockedRoom(t *testing.T) {
	server := newBackend(t)
	t.Setenv("ANONCHAT_ADMIN_PASSWORD", "secret")
	t.Setenv("ANONCHAT_ROOM_PASSWORD", "vault-pw")

	out, err := execute(t, server, "", "admin", "create", "--name", "Vault", "--locked")
	require.NoError(t, err)
	assert.Equal(t, "Created room vault.\n", out)

	out, err = execute(t, server, "", "rooms")
	require.NoError(t, err)
	assert.Contains(t, out, "Locked")

	_, err = execute(t, server, "", "send", "--room", "vault", "let me in")
	require.NoError(t, err)

	t.Setenv("ANONCHAT_ROOM_PASSWORD", "")
	stubPassword(t, "wrong")
	_, err = execute(t, server, "", "send", "--room", "vault", "let me in")
	assert.ErrorContains(t, err, "Incorrect password")

	assert.Len(t, messages(t, server, "vault"), 1)
}

func TestCLI_Admin(t *testing.T) {
	server := newBackend(t)
	t.Setenv("ANONCHAT_ADMIN_PASSWORD", "secret")

	out, err := execute(t, server, "", "admin", "login")
	require.NoError(t, err)
	assert.Equal(t, "Signed in as admin.\n", out)

	_, err = execute(t, server, "", "admin", "create", "--name", "  ")
	assert.ErrorContains(t, err, "room name is required")

	_, err = execute(t, server, "", "admin", "create", "--name", "Lobby")
	require.NoError(t, err)

	out, err = execute(t, server, "", "admin", "rooms")
	require.NoError(t, err)
	assert.Contains(t, out, "Lobby")
	assert.Contains(t, out, "admin")

	stubPassword(t, "room-pw")
	out, err = execute(t, server, "", "admin", "update", "lobby", "--name", "Main Lobby", "--locked")
	require.NoError(t, err)
	assert.Equal(t, "Updated room lobby.\n", out)

	out, err = execute(t, server, "", "rooms")
	require.NoError(t, err)
	assert.Contains(t, out, "Main Lobby")
	assert.Contains(t, out, "Locked")

	_, err = execute(t, server, "", "admin", "update", "missing", "--name", "x")
	assert.ErrorIs(t, err, directory.ErrRoomNotFound)

	out, err = execute(t, server, "n\n", "admin", "delete", "lobby")
	require.NoError(t, err)
	assert.Equal(t, "Aborted.\n", out)

	out, err = execute(t, server, "y\n", "admin", "delete", "lobby")
	require.NoError(t, err)
	assert.Equal(t, "Deleted room lobby.\n", out)

	out, err = execute(t, server, "", "rooms")
	require.NoError(t, err)
	assert.Equal(t, "No rooms available.\n", out)
}

func TestCLI_AdminWrongPassword(t *testing.T) {
	server := newBackend(t)
	t.Setenv("ANONCHAT_ADMIN_PASSWORD", "")
	stubPassword(t, "nope")

	_, err := execute(t, server, "", "admin", "login")
	var appErr *chatapi.AppError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.Unauthorized())
}

func TestCLI_SendErrors(t *testing.T) {
	server := newBackend(t)

	tcases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "unknown room",
			args:    []string{"send", "--room", "nowhere", "hi"},
			wantErr: "room not found",
		},
		{
			name:    "missing room flag",
			args:    []string{"send", "hi"},
			wantErr: `required flag(s) "room" not set`,
		},
		{
			name:    "missing message",
			args:    []string{"send", "--room", "lobby"},
			wantErr: "requires at least 1 arg(s)",
		},
		{
			name:    "bad server url",
			args:    []string{"--server", "ftp://example.com", "rooms"},
			wantErr: "unsupported url scheme",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, server, "", tc.args...)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: http://from-file:8000\nlog_level: warn\n"), 0o600))

	cfg, err := loadConfig(&rootFlags{configPath: path})
	require.NoError(t, err)
	assert.Equal(t, "http://from-file:8000", cfg.ServerURL)
	assert.Equal(t, "warn", cfg.LogLevel)

	cfg, err = loadConfig(&rootFlags{configPath: path, server: "http://flag:9000", logLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "http://flag:9000", cfg.ServerURL)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = loadConfig(&rootFlags{configPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	tcases := []struct {
		in   string
		want bool
	}{
		{in: "y\n", want: true},
		{in: "YES\n", want: true},
		{in: " y ", want: true},
		{in: "n\n", want: false},
		{in: "\n", want: false},
		{in: "", want: false},
	}

	for _, tc := range tcases {
		t.Run(tc.in, func(t *testing.T) {
			var out bytes.Buffer
			got, err := confirm(strings.NewReader(tc.in), &out, "sure? ")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, "sure? ", out.String())
		})
	}
}
