package main

import (
	"testing"

	"github.com/npezzotti/anon-chat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFlags() *flags {
	return &flags{
		addr:           "localhost:8000",
		store:          "pebble",
		signingKey:     defaultSigningKey,
		uploadDir:      "uploads",
		adminUser:      "admin",
		adminPassword:  "secret",
		maxUploadBytes: config.DefaultMaxUploadBytes,
		presenceWindow: config.DefaultPresenceWindow,
		rateLimit:      config.DefaultRateLimit,
		rateBurst:      config.DefaultRateBurst,
		logLevel:       "info",
	}
}

func TestBuildConfig(t *testing.T) {
	tcases := []struct {
		name    string
		modify  func(f *flags)
		wantDSN string
		wantErr bool
	}{
		{
			name:    "pebble default dir",
			wantDSN: defaultPebbleDir,
		},
		{
			name:    "postgres default dsn",
			modify:  func(f *flags) { f.store = "postgres" },
			wantDSN: defaultPostgresDSN,
		},
		{
			name:    "explicit dsn",
			modify:  func(f *flags) { f.dsn = "/var/lib/anonchat" },
			wantDSN: "/var/lib/anonchat",
		},
		{
			name:    "missing admin password",
			modify:  func(f *flags) { f.adminPassword = "" },
			wantErr: true,
		},
		{
			name:    "unknown store",
			modify:  func(f *flags) { f.store = "sqlite" },
			wantErr: true,
		},
		{
			name:    "bad signing key",
			modify:  func(f *flags) { f.signingKey = "not base64!" },
			wantErr: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			f := validFlags()
			if tc.modify != nil {
				tc.modify(f)
			}

			cfg, err := buildConfig(f)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantDSN, cfg.DatabaseDSN)
			assert.Equal(t, "secret", cfg.AdminPassword)
		})
	}
}

func TestOpenRepository_Pebble(t *testing.T) {
	f := validFlags()
	f.dsn = t.TempDir()

	cfg, err := buildConfig(f)
	require.NoError(t, err)

	repo, err := openRepository(cfg)
	require.NoError(t, err)
	defer repo.Close()

	assert.NoError(t, repo.Ping(t.Context()))
}

func TestNewRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()

	require.NoError(t, cmd.ParseFlags([]string{"--store", "postgres", "--allowed-origins", "http://a,http://b"}))
	store, err := cmd.Flags().GetString("store")
	require.NoError(t, err)
	assert.Equal(t, "postgres", store)

	origins, err := cmd.Flags().GetStringSlice("allowed-origins")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a", "http://b"}, origins)
}

func TestBuildConfig_TrustProxy(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--trust-proxy"}))
	trust, err := cmd.Flags().GetBool("trust-proxy")
	require.NoError(t, err)
	assert.True(t, trust)

	f := validFlags()
	cfg, err := buildConfig(f)
	require.NoError(t, err)
	assert.False(t, cfg.TrustProxy, "expected forwarded headers to be ignored by default")

	f.trustProxy = true
	cfg, err = buildConfig(f)
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxy)
}
