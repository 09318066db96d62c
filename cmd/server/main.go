package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/anon-chat/internal/api"
	"github.com/npezzotti/anon-chat/internal/config"
	"github.com/npezzotti/anon-chat/internal/database"
	"github.com/npezzotti/anon-chat/internal/logging"
	"github.com/npezzotti/anon-chat/internal/presence"
	"github.com/npezzotti/anon-chat/internal/stats"
	"github.com/npezzotti/anon-chat/internal/uploads"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	defaultSigningKey  = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="
	defaultPostgresDSN = "host=localhost user=postgres password=postgres dbname=anonchat sslmode=disable"
	defaultPebbleDir   = "data"
)

type flags struct {
	addr           string
	store          string
	dsn            string
	signingKey     string
	allowedOrigins []string
	uploadDir      string
	adminUser      string
	adminPassword  string
	maxUploadBytes int64
	presenceWindow time.Duration
	rateLimit      float64
	rateBurst      int
	trustProxy     bool
	logLevel       string
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:           "anonchat-server",
		Short:         "Reference backend for the anonymous chat client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, _, err := logging.New(logging.Options{Level: f.logLevel})
			if err != nil {
				return err
			}

			if err := run(logger, f); err != nil {
				logger.Error().Err(err).Msg("server exited")
				return err
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", envOr("ANONCHAT_ADDR", "localhost:8000"), "server address")
	fl.StringVar(&f.store, "store", envOr("ANONCHAT_STORE", string(config.StorePebble)), "message store: pebble or postgres")
	fl.StringVar(&f.dsn, "dsn", os.Getenv("ANONCHAT_DSN"), "postgres connection string, or pebble data directory")
	fl.StringVar(&f.signingKey, "signing-key", envOr("ANONCHAT_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	fl.StringSliceVar(&f.allowedOrigins, "allowed-origins", nil, "comma-separated list of allowed origins for CORS")
	fl.StringVar(&f.uploadDir, "upload-dir", envOr("ANONCHAT_UPLOAD_DIR", "uploads"), "directory for uploaded files")
	fl.StringVar(&f.adminUser, "admin-user", envOr("ANONCHAT_ADMIN_USER", "admin"), "admin username")
	fl.StringVar(&f.adminPassword, "admin-password", os.Getenv("ANONCHAT_ADMIN_PASSWORD"), "admin password (prefer ANONCHAT_ADMIN_PASSWORD)")
	fl.Int64Var(&f.maxUploadBytes, "max-upload-bytes", config.DefaultMaxUploadBytes, "largest accepted upload")
	fl.DurationVar(&f.presenceWindow, "presence-window", config.DefaultPresenceWindow, "how long a poll keeps a user online")
	fl.Float64Var(&f.rateLimit, "rate-limit", config.DefaultRateLimit, "sends and uploads per second per client")
	fl.IntVar(&f.rateBurst, "rate-burst", config.DefaultRateBurst, "burst allowance per client")
	fl.BoolVar(&f.trustProxy, "trust-proxy", os.Getenv("ANONCHAT_TRUST_PROXY") == "true", "use X-Forwarded-For from a reverse proxy as the client address")
	fl.StringVar(&f.logLevel, "log-level", envOr("ANONCHAT_LOG_LEVEL", "info"), "log level")

	return cmd
}

func buildConfig(f *flags) (*config.Config, error) {
	dsn := f.dsn
	if dsn == "" {
		dsn = defaultPebbleDir
		if config.StoreKind(f.store) == config.StorePostgres {
			dsn = defaultPostgresDSN
		}
	}

	cfg, err := config.NewConfig(f.addr, f.store, dsn, f.signingKey, f.allowedOrigins)
	if err != nil {
		return nil, err
	}

	cfg.UploadDir = f.uploadDir
	cfg.AdminUsername = f.adminUser
	cfg.AdminPassword = f.adminPassword
	cfg.MaxUploadBytes = f.maxUploadBytes
	cfg.PresenceWindow = f.presenceWindow
	cfg.RateLimit = f.rateLimit
	cfg.RateBurst = f.rateBurst
	cfg.TrustProxy = f.trustProxy
	cfg.LogLevel = f.logLevel

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openRepository(cfg *config.Config) (database.ChatRepository, error) {
	switch cfg.Store {
	case config.StorePostgres:
		repo, err := database.NewPgChatRepository(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		if err := repo.Migrate(); err != nil {
			repo.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		return repo, nil
	default:
		repo, err := database.NewPebbleChatRepository(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		return repo, nil
	}
}

func run(logger zerolog.Logger, f *flags) error {
	cfg, err := buildConfig(f)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error().Err(err).Msg("db close")
		}
	}()
	logger.Info().Str("store", string(cfg.Store)).Msg("store opened")

	files, err := uploads.NewStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux, logger)
	tracker := presence.NewTracker(logger, statsUpdater, cfg.PresenceWindow)

	srv := api.NewAnonChatApp(mux, logger, repo, files, tracker, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go tracker.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Msg("received signal")
	case serveErr = <-errCh:
		logger.Error().Err(serveErr).Msg("server")
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	logger.Info().Msg("stopping presence tracker")
	if err := tracker.Shutdown(shutDownCtx); err != nil {
		return fmt.Errorf("presence tracker shutdown: %w", err)
	}

	logger.Info().Msg("shutdown complete")
	if errors.Is(serveErr, http.ErrServerClosed) {
		return nil
	}
	return serveErr
}
