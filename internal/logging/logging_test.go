// ABOUTME: Tests for logger setup and the colorized handler
// ABOUTME: Covers level parsing, verbose override, attrs, groups, and JSON output

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentchat/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestSetup_TextHonorsLevel(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := Setup(config.LoggingConfig{Level: "warn", Format: "text"}, &buf, false)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN shown")
	assert.Contains(t, out, "key=value")
}

func TestSetup_VerboseForcesDebug(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := Setup(config.LoggingConfig{Level: "error"}, &buf, true)

	logger.Debug("details")
	assert.Contains(t, buf.String(), "DBG details")
}

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(config.LoggingConfig{Level: "info", Format: "json"}, &buf, false)

	logger.Info("hello", "component", "auth")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "auth", rec["component"])
}

func TestColorHandler_WithAttrsAndGroup(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := slog.New(NewColorHandler(&buf, slog.LevelDebug)).
		With("component", "stream").
		WithGroup("req")

	logger.Info("sent", "attempt", 2)

	out := buf.String()
	assert.Contains(t, out, "component=stream")
	assert.Contains(t, out, "req.attempt=2")
}

func TestDiscard(t *testing.T) {
	// Must not panic and must not be enabled for errors
	logger := Discard()
	logger.Error("dropped")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}
