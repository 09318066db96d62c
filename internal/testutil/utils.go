package testutil

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
}

// BufferLogger returns a logger writing JSON lines into the returned buffer so
// tests can assert on logged output.
func BufferLogger() (zerolog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return zerolog.New(buf), buf
}
