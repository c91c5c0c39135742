// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/condense/internal/log"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a loader. An empty configPath skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version, lookupEnv: os.LookupEnv}
}

// WithEnv replaces the environment lookup, for tests.
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	l.lookupEnv = lookup
	return l
}

// Path returns the config file path, possibly empty.
func (l *Loader) Path() string { return l.configPath }

// Load applies defaults, the file, then the environment, and validates the result.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := l.mergeEnv(&cfg); err != nil {
		return cfg, err
	}

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path over cfg with strict parsing.
func (l *Loader) loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *Config) error {
	e := &env{lookup: l.lookupEnv, logger: log.WithComponent("config")}

	e.String("DATA_DIR", &cfg.DataDir)

	e.String("LISTEN", &cfg.Server.Listen)
	e.Int64("MAX_UPLOAD_BYTES", &cfg.Server.MaxUploadBytes)
	e.Int("RATE_LIMIT_RPM", &cfg.Server.RateLimitRPM)
	e.Duration("READ_HEADER_TIMEOUT", &cfg.Server.ReadHeaderTimeout)
	e.Duration("SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	e.Strings("ALLOWED_ORIGINS", &cfg.Server.AllowedOrigins)

	e.String("FFMPEG_BIN", &cfg.FFmpeg.Bin)
	e.String("WORK_DIR", &cfg.FFmpeg.WorkDir)
	e.Duration("FFMPEG_KILL_GRACE", &cfg.FFmpeg.KillGrace)

	e.String("LOG_LEVEL", &cfg.Log.Level)
	e.String("LOG_SERVICE", &cfg.Log.Service)

	e.Bool("WATCHDOG_ENABLED", &cfg.Watchdog.Enabled)
	e.Duration("WATCHDOG_START_TIMEOUT", &cfg.Watchdog.StartTimeout)
	e.Duration("WATCHDOG_STALL_TIMEOUT", &cfg.Watchdog.StallTimeout)

	e.Bool("TRACING_ENABLED", &cfg.Tracing.Enabled)
	e.String("TRACING_EXPORTER", &cfg.Tracing.Exporter)
	e.String("TRACING_ENDPOINT", &cfg.Tracing.Endpoint)
	e.Float("TRACING_SAMPLING_RATE", &cfg.Tracing.SamplingRate)
	e.String("TRACING_ENVIRONMENT", &cfg.Tracing.Environment)

	e.String("EXPORT_DIR", &cfg.Export.Dir)

	if len(e.errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(e.errs, "; "))
	}
	return nil
}
