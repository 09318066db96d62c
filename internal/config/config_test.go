package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	var (
		addr = "localhost:8080"
		dsn  = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
		key  = "c29tZV9zZWNyZXQ="
		orig = []string{"http://localhost:3000"}
	)

	tcases := []struct {
		name  string
		addr  string
		store string
		dsn   string
		key   string
		orig  []string
		want  StoreKind
		err   bool
	}{
		{
			name:  "postgres",
			addr:  addr,
			store: "postgres",
			dsn:   dsn,
			key:   key,
			orig:  orig,
			want:  StorePostgres,
		},
		{
			name:  "pebble",
			addr:  addr,
			store: "pebble",
			dsn:   "data",
			key:   key,
			want:  StorePebble,
		},
		{
			name: "default store",
			addr: addr,
			dsn:  "data",
			key:  key,
			want: StorePebble,
		},
		{
			name:  "unknown store",
			addr:  addr,
			store: "mongo",
			dsn:   dsn,
			key:   key,
			err:   true,
		},
		{
			name: "empty address",
			addr: "",
			dsn:  dsn,
			key:  key,
			orig: orig,
			err:  true,
		},
		{
			name: "empty DSN",
			addr: addr,
			dsn:  "",
			key:  key,
			orig: orig,
			err:  true,
		},
		{
			name: "empty signing key",
			addr: addr,
			dsn:  dsn,
			key:  "",
			orig: orig,
			err:  true,
		},
		{
			name: "bad signing key",
			addr: addr,
			dsn:  dsn,
			key:  "not base64!",
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := NewConfig(tc.addr, tc.store, tc.dsn, tc.key, tc.orig)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, tc.addr, config.ServerAddr, "expected server address to match")
			assert.Equal(t, tc.want, config.Store, "expected store kind to match")
			assert.Equal(t, tc.dsn, config.DatabaseDSN, "expected database DSN to match")
			assert.Equal(t, tc.orig, config.AllowedOrigins, "expected allowed origins to match")
			assert.Equal(t, []byte("some_secret"), config.SigningKey, "expected signing key to be decoded")
			assert.Equal(t, DefaultMaxUploadBytes, config.MaxUploadBytes)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		c, err := NewConfig("localhost:8000", "pebble", "data", "c29tZV9zZWNyZXQ=", nil)
		require.NoError(t, err)
		c.AdminPassword = "admin123"
		return c
	}

	tcases := []struct {
		name   string
		mutate func(c *Config)
		err    bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "no admin password", mutate: func(c *Config) { c.AdminPassword = "" }, err: true},
		{name: "no upload dir", mutate: func(c *Config) { c.UploadDir = "" }, err: true},
		{name: "zero upload limit", mutate: func(c *Config) { c.MaxUploadBytes = 0 }, err: true},
		{name: "zero presence window", mutate: func(c *Config) { c.PresenceWindow = 0 }, err: true},
		{name: "zero rate", mutate: func(c *Config) { c.RateLimit = 0 }, err: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			if tc.err {
				assert.Error(t, c.Validate())
				return
			}
			assert.NoError(t, c.Validate())
		})
	}
}

func Test_decodeSigningKey(t *testing.T) {
	tcases := []struct {
		name         string
		base64Secret string
		expectedKey  []byte
		expectError  bool
	}{
		{
			name:         "valid base64 secret",
			base64Secret: "c29tZV9zZWNyZXQ=",
			expectedKey:  []byte("some_secret"),
			expectError:  false,
		},
		{
			name:         "invalid base64 secret",
			base64Secret: "invalid_base64",
			expectedKey:  nil,
			expectError:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := decodeSigningSecret(tc.base64Secret)
			if tc.expectError {
				assert.Error(t, err, "expected error for base64 secret: %s", tc.base64Secret)
			} else {
				assert.NoError(t, err, "expected no error for base64 secret: %s", tc.base64Secret)
				assert.Equal(t, tc.expectedKey, key, "expected decoded key to match for base64 secret: %s", tc.base64Secret)
			}
		})
	}
}

func TestLoadClientConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, err := LoadClientConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultClientConfig(), cfg)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("yaml then env", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)

		path := filepath.Join(dir, "anonchat.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server_url: http://chat.internal:9000\nmessage_interval: 2s\ndownload_dir: /tmp/dl\n"), 0o600))
		t.Setenv("ANONCHAT_DOWNLOAD_DIR", "/srv/files")

		cfg, err := LoadClientConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "http://chat.internal:9000", cfg.ServerURL)
		assert.Equal(t, 2*time.Second, cfg.MessageInterval)
		assert.Equal(t, 10*time.Second, cfg.OnlineInterval)
		assert.Equal(t, "/srv/files", cfg.DownloadDir, "expected environment to override the file")
	})

	t.Run("dotenv", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ANONCHAT_LOG_LEVEL=debug\n"), 0o600))
		t.Cleanup(func() { os.Unsetenv("ANONCHAT_LOG_LEVEL") })

		cfg, err := LoadClientConfig("")
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadClientConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestClientConfig_applyEnv(t *testing.T) {
	env := map[string]string{
		"ANONCHAT_SERVER_URL":       "https://chat.example.com",
		"ANONCHAT_ONLINE_INTERVAL":  "30s",
		"ANONCHAT_MAX_UPLOAD_BYTES": "1024",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultClientConfig()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "https://chat.example.com", cfg.ServerURL)
	assert.Equal(t, 30*time.Second, cfg.OnlineInterval)
	assert.EqualValues(t, 1024, cfg.MaxUploadBytes)

	env["ANONCHAT_MESSAGE_INTERVAL"] = "soon"
	assert.Error(t, cfg.applyEnv(lookup))
}

func TestClientConfig_Validate(t *testing.T) {
	tcases := []struct {
		name   string
		mutate func(c *ClientConfig)
		err    bool
	}{
		{name: "defaults", mutate: func(c *ClientConfig) {}},
		{name: "empty url", mutate: func(c *ClientConfig) { c.ServerURL = "" }, err: true},
		{name: "zero message interval", mutate: func(c *ClientConfig) { c.MessageInterval = 0 }, err: true},
		{name: "message slower than online", mutate: func(c *ClientConfig) { c.MessageInterval = 20 * time.Second }, err: true},
		{name: "equal intervals", mutate: func(c *ClientConfig) { c.MessageInterval = c.OnlineInterval }, err: true},
		{name: "no upload limit", mutate: func(c *ClientConfig) { c.MaxUploadBytes = 0 }, err: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultClientConfig()
			tc.mutate(&c)
			if tc.err {
				assert.Error(t, c.Validate())
				return
			}
			assert.NoError(t, c.Validate())
		})
	}
}
