package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-station/internal/config"
)

func TestNew_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&config.AppConfig{AppEnv: config.EnvProd, LogLevel: slog.LevelInfo}, &buf, "weather-station")

	log.Debug("hidden")
	log.Info("refresh done", "status", "ready")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "refresh done", line["msg"])
	assert.Equal(t, "weather-station", line["app"])
	assert.Equal(t, "prod", line["env"])
	assert.Equal(t, "ready", line["status"])
}

func TestNew_DevIsHumanReadable(t *testing.T) {
	var buf bytes.Buffer
	log := New(&config.AppConfig{AppEnv: config.EnvDev, LogLevel: slog.LevelDebug}, &buf, "weather-station")

	log.Debug("refresh started", "generation", 3)

	out := buf.String()
	assert.Contains(t, out, "refresh started")
	assert.Contains(t, out, "generation")
	assert.False(t, json.Valid(buf.Bytes()))
}
