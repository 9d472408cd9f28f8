package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestConfigure_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "warn", JSON: true, Output: &buf})
	t.Cleanup(func() { Configure(Options{}) })

	L().Info("pipeline: dropped")
	L().Warn("pipeline: bundle missing", "bundle", "wavelength id")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "pipeline: bundle missing", rec["msg"])
	assert.Equal(t, "wavelength id", rec["bundle"])
	assert.NotContains(t, rec, slog.SourceKey)
}

func TestNew_AddSourceDoesNotInstall(t *testing.T) {
	before := L()
	var buf bytes.Buffer
	l := New(Options{JSON: true, AddSource: true, Output: &buf})
	assert.Same(t, before, L())

	l.Info("cif: parsed")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Contains(t, rec, slog.SourceKey)
}

func TestInitFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "error")
	t.Setenv(EnvJSON, "true")
	t.Setenv(EnvSource, "not-a-bool")
	InitFromEnv()
	t.Cleanup(func() { Configure(Options{}) })

	_, isJSON := L().Handler().(*slog.JSONHandler)
	assert.True(t, isJSON)
	assert.False(t, L().Enabled(context.Background(), slog.LevelWarn))
}
