package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("invalid level", func(t *testing.T) {
		_, _, err := New(Options{Level: "loud"})
		assert.Error(t, err)
	})

	t.Run("console", func(t *testing.T) {
		logger, closer, err := New(Options{Level: "debug"})
		require.NoError(t, err)
		assert.NoError(t, closer.Close())
		assert.Equal(t, "debug", logger.GetLevel().String())
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "client.log")
		logger, closer, err := New(Options{File: path})
		require.NoError(t, err)

		logger.Info().Msg("hello")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"message":"hello"`)
	})
}
