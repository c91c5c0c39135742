// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"path/filepath"
	"time"

	"github.com/ManuGH/condense/internal/telemetry"
)

// Config is the complete runtime configuration.
type Config struct {
	DataDir  string         `yaml:"dataDir"`
	Server   ServerConfig   `yaml:"server"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Log      LogConfig      `yaml:"log"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Export   ExportConfig   `yaml:"export"`

	// Version is set from the binary, never from files.
	Version string `yaml:"-"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen            string        `yaml:"listen"`
	MaxUploadBytes    int64         `yaml:"maxUploadBytes"`
	RateLimitRPM      int           `yaml:"rateLimitRPM"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	// AllowedOrigins enables CORS for browser front ends; "*" allows any origin.
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// FFmpegConfig configures the encoder adapter.
type FFmpegConfig struct {
	Bin       string        `yaml:"bin"`
	WorkDir   string        `yaml:"workDir"`
	KillGrace time.Duration `yaml:"killGrace"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// WatchdogConfig configures the stall watchdog. It is off by default.
type WatchdogConfig struct {
	Enabled      bool          `yaml:"enabled"`
	StartTimeout time.Duration `yaml:"startTimeout"`
	StallTimeout time.Duration `yaml:"stallTimeout"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// ExportConfig configures where finished artifacts may be written on disk.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DataDir: "/var/lib/condense",
		Server: ServerConfig{
			Listen:            ":8088",
			MaxUploadBytes:    2 << 30,
			RateLimitRPM:      30,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		FFmpeg: FFmpegConfig{
			Bin:       "ffmpeg",
			KillGrace: 2 * time.Second,
		},
		Log: LogConfig{
			Level:   "info",
			Service: "condense",
		},
		Watchdog: WatchdogConfig{
			StartTimeout: 60 * time.Second,
			StallTimeout: 120 * time.Second,
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

// WorkDir is the encoder scratch root, DataDir/work unless set explicitly.
func (c Config) WorkDir() string {
	if c.FFmpeg.WorkDir != "" {
		return c.FFmpeg.WorkDir
	}
	return filepath.Join(c.DataDir, "work")
}

// Telemetry maps the tracing section onto the telemetry package.
func (c Config) Telemetry() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Tracing.Enabled,
		ServiceName:    c.Log.Service,
		ServiceVersion: c.Version,
		Environment:    c.Tracing.Environment,
		ExporterType:   c.Tracing.Exporter,
		Endpoint:       c.Tracing.Endpoint,
		SamplingRate:   c.Tracing.SamplingRate,
	}
}
