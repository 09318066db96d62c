package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

type StoreKind string

const (
	StorePebble   StoreKind = "pebble"
	StorePostgres StoreKind = "postgres"
)

const (
	DefaultMaxUploadBytes int64 = 50 << 20
	DefaultPresenceWindow       = 30 * time.Second
	DefaultRateLimit            = 5.0
	DefaultRateBurst            = 10
)

// Config is the reference server's configuration.
type Config struct {
	ServerAddr string
	Store      StoreKind
	// DatabaseDSN is a Postgres connection string, or the data directory
	// when Store is pebble.
	DatabaseDSN    string
	UploadDir      string
	SigningKey     []byte
	AllowedOrigins []string

	AdminUsername string
	AdminPassword string

	MaxUploadBytes int64
	PresenceWindow time.Duration
	// RateLimit is the sustained number of sends and uploads per second
	// allowed from one client address.
	RateLimit  float64
	RateBurst  int
	// TrustProxy honours X-Forwarded-For and related headers. Enable it only
	// when every request arrives through a reverse proxy that sets them.
	TrustProxy bool
	LogLevel   string
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, store, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	kind := StoreKind(store)
	switch kind {
	case StorePebble, StorePostgres:
	case "":
		kind = StorePebble
	default:
		return nil, fmt.Errorf("unknown store %q", store)
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		Store:          kind,
		DatabaseDSN:    databaseDSN,
		UploadDir:      "uploads",
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		AdminUsername:  "admin",
		MaxUploadBytes: DefaultMaxUploadBytes,
		PresenceWindow: DefaultPresenceWindow,
		RateLimit:      DefaultRateLimit,
		RateBurst:      DefaultRateBurst,
		LogLevel:       "info",
	}, nil
}

// Validate checks the fields callers may have changed after NewConfig.
func (c *Config) Validate() error {
	if c.UploadDir == "" {
		return fmt.Errorf("upload directory cannot be empty")
	}
	if c.AdminUsername == "" || c.AdminPassword == "" {
		return fmt.Errorf("admin username and password are required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	if c.PresenceWindow <= 0 {
		return fmt.Errorf("presence window must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("rate limit and burst must be positive")
	}
	return nil
}
