// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package watchdog forces an encoder reload when a running job stops making progress.
package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/condense/internal/job"
	"github.com/ManuGH/condense/internal/lifecycle"
	"github.com/ManuGH/condense/internal/log"
	"github.com/ManuGH/condense/internal/metrics"
)

// Trip causes, used as metric labels.
const (
	CauseStartTimeout = "start_timeout"
	CauseStall        = "stall"
)

type clock interface {
	Now() time.Time
	NewTicker(d time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time                   { return time.Now() }
func (realClock) NewTicker(d time.Duration) ticker { return &realTicker{time.NewTicker(d)} }

type realTicker struct {
	*time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.Ticker.C }

// Target is what the watchdog observes and reloads.
type Target interface {
	Snapshot() job.Snapshot
	Reload(ctx context.Context, trigger string) error
}

// Config holds the timeouts. A zero timeout disables that check.
type Config struct {
	StartTimeout time.Duration
	StallTimeout time.Duration
	// Interval between samples. Zero means one second.
	Interval time.Duration
}

// Watchdog samples the target and reloads it once per stalled job.
type Watchdog struct {
	target Target
	clock  clock
	logger zerolog.Logger

	mu           sync.Mutex
	cfg          Config
	jobID        string
	lastProgress int
	lastChange   time.Time
	hasProgress  bool
	tripped      bool
}

// New creates a watchdog for target.
func New(target Target, cfg Config) *Watchdog {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Watchdog{
		target: target,
		clock:  realClock{},
		logger: log.WithComponent("watchdog"),
		cfg:    cfg,
	}
}

// SetTimeouts replaces the timeouts; the job being watched keeps its baseline.
func (w *Watchdog) SetTimeouts(start, stall time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfg.StartTimeout, w.cfg.StallTimeout = start, stall
}

// Run samples the target until ctx is done.
func (w *Watchdog) Run(ctx context.Context) error {
	w.mu.Lock()
	interval := w.cfg.Interval
	w.mu.Unlock()

	t := w.clock.NewTicker(interval)
	defer t.Stop()

	w.logger.Info().Dur("interval", interval).Msg("watchdog started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
			w.check(ctx)
		}
	}
}

// check takes one sample and reports the cause when it tripped.
func (w *Watchdog) check(ctx context.Context) string {
	snap := w.target.Snapshot()
	cause := w.observe(snap)
	if cause == "" {
		return ""
	}

	metrics.RecordWatchdogTrip(cause)
	logger := w.logger.With().Str(log.FieldJobID, snap.Job.ID).Logger()
	logger.Warn().
		Str(log.FieldEvent, "watchdog.trip").
		Str("cause", cause).
		Int(log.FieldProgress, snap.Progress).
		Msg("job stalled, reloading encoder")
	if err := w.target.Reload(ctx, lifecycle.TriggerWatchdog); err != nil {
		logger.Error().Err(err).Msg("watchdog reload failed")
	}
	return cause
}

func (w *Watchdog) observe(snap job.Snapshot) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	if snap.Status != job.StatusRunning || snap.Job == nil {
		w.jobID = ""
		return ""
	}
	if snap.Job.ID != w.jobID {
		w.jobID = snap.Job.ID
		w.lastProgress = snap.Progress
		w.lastChange = now
		w.hasProgress = snap.Progress > 0
		w.tripped = false
		return ""
	}
	if w.tripped {
		return ""
	}
	if snap.Progress > w.lastProgress {
		w.lastProgress = snap.Progress
		w.lastChange = now
		w.hasProgress = true
		return ""
	}

	elapsed := now.Sub(w.lastChange)
	switch {
	case !w.hasProgress && w.cfg.StartTimeout > 0 && elapsed > w.cfg.StartTimeout:
		w.tripped = true
		return CauseStartTimeout
	case w.hasProgress && w.cfg.StallTimeout > 0 && elapsed > w.cfg.StallTimeout:
		w.tripped = true
		return CauseStall
	}
	return ""
}
