// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics holds the Prometheus collectors shared across condense.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condense_jobs_total",
		Help: "Compression jobs by result",
	}, []string{"result"}) // result=completed|failed|rejected_busy|rejected_invalid|rejected_not_ready

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "condense_job_duration_seconds",
		Help:    "Wall time of compression jobs from start to completion or failure",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
	}, []string{"recipe", "result"})

	encoderLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condense_encoder_loads_total",
		Help: "Encoder instance load attempts by result",
	}, []string{"result"}) // result=ok|error

	encoderReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condense_encoder_reloads_total",
		Help: "Forced encoder reloads by trigger",
	}, []string{"trigger"}) // trigger=failure|watchdog|manual

	encoderState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "condense_encoder_state",
		Help: "Current encoder lifecycle state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	artifactsBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "condense_artifacts_bytes",
		Help: "Bytes held by unreleased output artifacts",
	})

	artifactsCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "condense_artifacts",
		Help: "Number of unreleased output artifacts",
	})

	ffmpegExitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condense_ffmpeg_exit_total",
		Help: "ffmpeg process exits by reason",
	}, []string{"reason"}) // reason=clean|error|ctx_cancel|terminated|start_failed

	watchdogTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condense_watchdog_trips_total",
		Help: "Watchdog interventions by cause",
	}, []string{"cause"}) // cause=start_timeout|stall

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condense_config_reloads_total",
		Help: "Configuration hot reload attempts by result",
	}, []string{"result"})
)

// RecordJob records a finished job.
func RecordJob(recipe, result string, d time.Duration) {
	jobsTotal.WithLabelValues(result).Inc()
	jobDuration.WithLabelValues(recipe, result).Observe(d.Seconds())
}

// RecordJobRejected counts a job refused before it started.
func RecordJobRejected(reason string) {
	jobsTotal.WithLabelValues("rejected_" + reason).Inc()
}

// RecordEncoderLoad counts an encoder load attempt.
func RecordEncoderLoad(ok bool) {
	if ok {
		encoderLoadsTotal.WithLabelValues("ok").Inc()
		return
	}
	encoderLoadsTotal.WithLabelValues("error").Inc()
}

// RecordEncoderReload counts a forced reload.
func RecordEncoderReload(trigger string) {
	encoderReloadsTotal.WithLabelValues(trigger).Inc()
}

var encoderStates = []string{"uninitialized", "loading", "ready", "busy", "terminated"}

// SetEncoderState marks state as the only active lifecycle state.
func SetEncoderState(state string) {
	for _, s := range encoderStates {
		v := 0.0
		if s == state {
			v = 1
		}
		encoderState.WithLabelValues(s).Set(v)
	}
}

// SetArtifacts publishes the artifact store totals.
func SetArtifacts(count int, bytes int64) {
	artifactsCount.Set(float64(count))
	artifactsBytes.Set(float64(bytes))
}

// RecordFFmpegExit counts an ffmpeg process exit.
func RecordFFmpegExit(reason string) {
	ffmpegExitTotal.WithLabelValues(reason).Inc()
}

// RecordWatchdogTrip counts a watchdog intervention.
func RecordWatchdogTrip(cause string) {
	watchdogTripsTotal.WithLabelValues(cause).Inc()
}

// RecordConfigReload counts a configuration hot reload.
func RecordConfigReload(ok bool) {
	if ok {
		configReloadsTotal.WithLabelValues("success").Inc()
		return
	}
	configReloadsTotal.WithLabelValues("failure").Inc()
}
