// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/condense/internal/validate"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "condense.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	cfg, err := NewLoader("", "v1.2.3").WithEnv(envMap(map[string]string{"CONDENSE_DATA_DIR": dataDir})).Load()
	require.NoError(t, err)

	want := Defaults()
	assert.Equal(t, want.Server, cfg.Server)
	assert.Equal(t, want.FFmpeg, cfg.FFmpeg)
	assert.False(t, cfg.Watchdog.Enabled, "watchdog is opt-in")
	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, filepath.Join(dataDir, "work"), cfg.WorkDir())
}

func TestLoad_Precedence(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
dataDir: `+dataDir+`
server:
  listen: ":9000"
  rateLimitRPM: 10
ffmpeg:
  bin: /opt/ffmpeg/bin/ffmpeg
watchdog:
  enabled: true
  stallTimeout: 45s
log:
  level: debug
`)
	cfg, err := NewLoader(path, "").WithEnv(envMap(map[string]string{
		"CONDENSE_LISTEN":          ":9100",
		"CONDENSE_RATE_LIMIT_RPM":  "",
		"CONDENSE_LOG_LEVEL":       "warn",
		"CONDENSE_ALLOWED_ORIGINS": "https://a.example, ,https://b.example",
	})).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Listen, "env beats file")
	assert.Equal(t, 10, cfg.Server.RateLimitRPM, "empty env keeps file value")
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpeg.Bin)
	assert.True(t, cfg.Watchdog.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Watchdog.StallTimeout)
	assert.Equal(t, 60*time.Second, cfg.Watchdog.StartTimeout, "unset file keys keep defaults")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_StrictUnknownField(t *testing.T) {
	path := writeConfig(t, "server:\n  listn: \":9000\"\n")
	_, err := NewLoader(path, "").WithEnv(envMap(nil)).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "condense.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path, "").WithEnv(envMap(nil)).Load()
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_MultipleDocuments(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n---\nlog:\n  level: debug\n")
	_, err := NewLoader(path, "").WithEnv(envMap(nil)).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_InvalidEnv(t *testing.T) {
	_, err := NewLoader("", "").WithEnv(envMap(map[string]string{
		"CONDENSE_DATA_DIR":               t.TempDir(),
		"CONDENSE_WATCHDOG_STALL_TIMEOUT": "forever",
	})).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONDENSE_WATCHDOG_STALL_TIMEOUT")
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.DataDir = t.TempDir()
	require.NoError(t, Validate(cfg))

	cfg.Server.Listen = "9000"
	cfg.Log.Level = "loud"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "zipkin"
	cfg.Tracing.SamplingRate = 2
	cfg.Watchdog.StallTimeout = -time.Second

	err := Validate(cfg)
	require.Error(t, err)
	assert.ElementsMatch(t, []string{
		"server.listen", "log.level", "tracing.exporter", "tracing.samplingRate", "watchdog.stallTimeout",
	}, validate.Fields(err))
}

func TestTelemetryMapping(t *testing.T) {
	cfg := Defaults()
	cfg.Version = "v2"
	cfg.Tracing.Enabled = true
	tc := cfg.Telemetry()
	assert.True(t, tc.Enabled)
	assert.Equal(t, "condense", tc.ServiceName)
	assert.Equal(t, "v2", tc.ServiceVersion)
	assert.Equal(t, "grpc", tc.ExporterType)
}
