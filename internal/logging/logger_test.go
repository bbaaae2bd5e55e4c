package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issuecompass/internal/config"
)

func TestNewWithWriterText(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := NewWithWriter(config.LogConfig{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "item", "x")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "item=x")
}

func TestNewWithWriterFanoutToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closer, err := NewWithWriter(config.LogConfig{Level: "debug", Format: "json", File: path}, &buf)
	require.NoError(t, err)

	logger.Debug("both")
	require.NoError(t, closer.Close())

	assert.Contains(t, buf.String(), `"msg":"both"`)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"both"`)
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, _, err := NewWithWriter(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, _, err = NewWithWriter(config.LogConfig{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}
