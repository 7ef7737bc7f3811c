package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_FileOutputWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "storybook.log")

	closer, err := Init(Config{Level: "info", Format: "json", Output: "file", FilePath: path})
	require.NoError(t, err)

	log.Info().Str("session", "abc").Msg("run started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session":"abc"`)
	assert.Contains(t, string(data), `"message":"run started"`)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestInit_InvalidLevel(t *testing.T) {
	_, err := Init(Config{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")
}

func TestInit_FileOutputRequiresPath(t *testing.T) {
	_, err := Init(Config{Output: "file"})
	assert.Error(t, err)
}

func TestInit_DefaultsToInfo(t *testing.T) {
	closer, err := Init(Config{})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
