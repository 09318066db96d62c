package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "ANONCHAT_"

// ClientConfig configures the anonchat client. Values come from defaults, an
// optional YAML file, the environment (including a .env file) and finally
// command-line flags, each overriding the one before.
type ClientConfig struct {
	ServerURL       string        `yaml:"server_url"`
	MessageInterval time.Duration `yaml:"message_interval"`
	OnlineInterval  time.Duration `yaml:"online_interval"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	DownloadDir     string        `yaml:"download_dir"`
	LogFile         string        `yaml:"log_file"`
	LogLevel        string        `yaml:"log_level"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL:       "http://localhost:8000",
		MessageInterval: 5 * time.Second,
		OnlineInterval:  10 * time.Second,
		MaxUploadBytes:  DefaultMaxUploadBytes,
		DownloadDir:     ".",
		LogLevel:        "info",
	}
}

// LoadClientConfig applies the YAML file at path, if path is set, and then
// the environment on top of the defaults. A missing .env file is not an
// error; a missing config file named explicitly is.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c *ClientConfig) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = d
		return nil
	}

	str("SERVER_URL", &c.ServerURL)
	str("DOWNLOAD_DIR", &c.DownloadDir)
	str("LOG_FILE", &c.LogFile)
	str("LOG_LEVEL", &c.LogLevel)

	if err := dur("MESSAGE_INTERVAL", &c.MessageInterval); err != nil {
		return err
	}
	if err := dur("ONLINE_INTERVAL", &c.OnlineInterval); err != nil {
		return err
	}

	if v, ok := lookup(envPrefix + "MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_UPLOAD_BYTES: %w", envPrefix, err)
		}
		c.MaxUploadBytes = n
	}
	return nil
}

func (c ClientConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server url cannot be empty")
	}
	if c.MessageInterval <= 0 || c.OnlineInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.MessageInterval >= c.OnlineInterval {
		return fmt.Errorf("message interval (%s) must be shorter than online interval (%s)", c.MessageInterval, c.OnlineInterval)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	return nil
}
