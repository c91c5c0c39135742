// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"github.com/ManuGH/condense/internal/validate"
)

// Validate checks a fully merged configuration. Directories that do not exist
// yet are created.
func Validate(cfg Config) error {
	v := validate.New()

	v.ListenAddr("server.listen", cfg.Server.Listen)
	v.Positive("server.maxUploadBytes", cfg.Server.MaxUploadBytes)
	v.Range("server.rateLimitRPM", cfg.Server.RateLimitRPM, 0, 100000)
	v.NonNegativeDuration("server.readHeaderTimeout", cfg.Server.ReadHeaderTimeout)
	v.NonNegativeDuration("server.shutdownTimeout", cfg.Server.ShutdownTimeout)

	v.Directory("dataDir", cfg.DataDir, false)
	v.NotEmpty("ffmpeg.bin", cfg.FFmpeg.Bin)
	v.NonNegativeDuration("ffmpeg.killGrace", cfg.FFmpeg.KillGrace)

	v.LogLevel("log.level", cfg.Log.Level)

	v.NonNegativeDuration("watchdog.startTimeout", cfg.Watchdog.StartTimeout)
	v.NonNegativeDuration("watchdog.stallTimeout", cfg.Watchdog.StallTimeout)

	if cfg.Tracing.Enabled {
		v.OneOf("tracing.exporter", cfg.Tracing.Exporter, []string{"grpc", "http"})
		v.NotEmpty("tracing.endpoint", cfg.Tracing.Endpoint)
		v.RangeFloat("tracing.samplingRate", cfg.Tracing.SamplingRate, 0, 1)
	}

	if cfg.Export.Dir != "" {
		v.Directory("export.dir", cfg.Export.Dir, false)
	}

	return v.Err()
}
