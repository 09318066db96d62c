// Package logging builds the zerolog loggers used by both binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	// File, when set, sends output to a size-rotated file instead of stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New returns a logger and a closer that releases the log file, if any.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("parse log level: %w", err)
		}
		level = l
	}

	if opts.File == "" {
		w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(w).Level(level).With().Timestamp().Logger(), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}

	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   true,
	}

	return zerolog.New(lj).Level(level).With().Timestamp().Logger(), lj, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// DefaultFile is the client log location used when the TUI owns the terminal.
func DefaultFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "anonchat", "anonchat.log")
}
