// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package lifecycle owns the single encoder instance of a process.
//
// The Manager loads the encoder explicitly, lends it to one job at a time through
// a Lease and replaces it after fatal errors. Concurrent reloads are coalesced.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/condense/internal/encoder"
	"github.com/ManuGH/condense/internal/fsm"
	"github.com/ManuGH/condense/internal/log"
	"github.com/ManuGH/condense/internal/metrics"
)

// State is the lifecycle state of the encoder instance.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateBusy          State = "busy"
	StateTerminated    State = "terminated"
)

type event string

const (
	evLoad       event = "load"
	evLoaded     event = "loaded"
	evLoadFailed event = "load_failed"
	evAcquire    event = "acquire"
	evRelease    event = "release"
	evTerminate  event = "terminate"
)

// Reload triggers, used as metric labels.
const (
	TriggerManual   = "manual"
	TriggerFailure  = "failure"
	TriggerWatchdog = "watchdog"
)

func transitions() []fsm.Transition[State, event] {
	return []fsm.Transition[State, event]{
		{From: StateUninitialized, Event: evLoad, To: StateLoading},
		{From: StateTerminated, Event: evLoad, To: StateLoading},
		{From: StateLoading, Event: evLoaded, To: StateReady},
		{From: StateLoading, Event: evLoadFailed, To: StateUninitialized},
		{From: StateReady, Event: evAcquire, To: StateBusy},
		{From: StateBusy, Event: evRelease, To: StateReady},
		{From: StateUninitialized, Event: evTerminate, To: StateTerminated},
		{From: StateLoading, Event: evTerminate, To: StateTerminated},
		{From: StateReady, Event: evTerminate, To: StateTerminated},
		{From: StateBusy, Event: evTerminate, To: StateTerminated},
	}
}

// Status is a point-in-time view of the manager.
type Status struct {
	State      State     `json:"state"`
	Generation uint64    `json:"generation"`
	Version    string    `json:"version,omitempty"`
	LoadedAt   time.Time `json:"loaded_at,omitzero"`
	LastError  string    `json:"last_error,omitempty"`
}

// Manager owns exactly one encoder instance at a time.
type Manager struct {
	factory encoder.Factory
	res     encoder.Resources
	logger  zerolog.Logger
	sf      singleflight.Group

	mu       sync.Mutex
	machine  *fsm.Machine[State, event]
	enc      encoder.Encoder
	gen      uint64
	loadedAt time.Time
	lastErr  error
}

// New returns a manager in the uninitialized state. Nothing is loaded until Load.
func New(factory encoder.Factory, res encoder.Resources) *Manager {
	m := &Manager{
		factory: factory,
		res:     res,
		logger:  log.WithComponent("lifecycle"),
		machine: fsm.MustNew(StateUninitialized, transitions()),
	}
	m.machine.Observe(func(from, to State, ev event) {
		metrics.SetEncoderState(string(to))
		m.logger.Debug().
			Str(log.FieldEvent, "encoder."+string(ev)).
			Str(log.FieldOldState, string(from)).
			Str(log.FieldNewState, string(to)).
			Msg("encoder state changed")
	})
	metrics.SetEncoderState(string(StateUninitialized))
	return m
}

// fire applies ev. Callers hold m.mu, so the table is the only source of failure.
func (m *Manager) fire(ev event) error {
	_, err := m.machine.Fire(context.Background(), ev)
	return err
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.machine.State()
}

// Generation identifies the currently loaded instance; it increases with every successful load.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Status returns a snapshot for status endpoints.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		State:      m.machine.State(),
		Generation: m.gen,
		LoadedAt:   m.loadedAt,
	}
	if v, ok := m.enc.(interface{ Version() string }); ok {
		st.Version = v.Version()
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

// LastError returns the most recent load failure, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Load brings the manager to ready. It is idempotent when ready or busy and
// concurrent callers share one attempt. Failures return *encoder.LoadError and
// leave the manager uninitialized so Load can be retried.
func (m *Manager) Load(ctx context.Context) error {
	_, err, _ := m.sf.Do("load", func() (any, error) {
		return nil, m.load(ctx)
	})
	return err
}

func (m *Manager) load(ctx context.Context) error {
	m.mu.Lock()
	switch m.machine.State() {
	case StateReady, StateBusy:
		m.mu.Unlock()
		return nil
	}
	if err := m.fire(evLoad); err != nil {
		m.mu.Unlock()
		return err
	}
	enc := m.factory()
	m.mu.Unlock()

	start := time.Now()
	err := enc.Load(ctx, m.res)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.machine.State() != StateLoading {
		// Terminated while loading; the fresh instance is never published.
		_ = enc.Terminate()
		return &encoder.LoadError{Err: encoder.ErrTerminated}
	}
	if err != nil {
		_ = enc.Terminate()
		loadErr := &encoder.LoadError{Err: err}
		m.lastErr = loadErr
		metrics.RecordEncoderLoad(false)
		_ = m.fire(evLoadFailed)
		m.logger.Error().Err(err).Str(log.FieldEvent, "encoder.load_failed").Msg("encoder load failed")
		return loadErr
	}

	m.enc = enc
	m.gen++
	m.loadedAt = time.Now()
	m.lastErr = nil
	metrics.RecordEncoderLoad(true)
	_ = m.fire(evLoaded)
	m.logger.Info().
		Str(log.FieldEvent, "encoder.ready").
		Uint64(log.FieldGeneration, m.gen).
		Dur("load_duration", time.Since(start)).
		Msg("encoder ready")
	return nil
}

// Lease is an exclusive borrow of the encoder for one job.
type Lease struct {
	Encoder    encoder.Encoder
	Generation uint64

	m    *Manager
	once sync.Once
}

// Release returns the encoder. It only affects the generation it was issued for
// and is safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		m := l.m
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.gen == l.Generation && m.machine.State() == StateBusy {
			_ = m.fire(evRelease)
		}
	})
}

// Acquire lends the encoder to the caller. It fails with *encoder.BusyError while
// another lease is out and encoder.ErrNotReady when nothing is loaded.
func (m *Manager) Acquire() (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.machine.State() {
	case StateReady:
		if err := m.fire(evAcquire); err != nil {
			return nil, err
		}
		return &Lease{Encoder: m.enc, Generation: m.gen, m: m}, nil
	case StateBusy:
		return nil, &encoder.BusyError{}
	default:
		return nil, encoder.ErrNotReady
	}
}

// Terminate releases the encoder instance. A running job observes its Exec failing.
// Terminating an already terminated manager is a no-op.
func (m *Manager) Terminate(ctx context.Context) error {
	m.mu.Lock()
	if m.machine.State() == StateTerminated {
		m.mu.Unlock()
		return nil
	}
	enc := m.enc
	m.enc = nil
	if err := m.fire(evTerminate); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	logger := log.WithContext(ctx, m.logger)
	logger.Info().Str(log.FieldEvent, "encoder.terminated").Msg("encoder terminated")
	if enc == nil {
		return nil
	}
	if err := enc.Terminate(); err != nil && !errors.Is(err, encoder.ErrTerminated) {
		return fmt.Errorf("terminate encoder: %w", err)
	}
	return nil
}

// Reload terminates the current instance and loads a fresh one.
// Concurrent reloads share one attempt.
func (m *Manager) Reload(ctx context.Context, trigger string) error {
	_, err, _ := m.sf.Do("reload", func() (any, error) {
		metrics.RecordEncoderReload(trigger)
		m.logger.Warn().Str(log.FieldEvent, "encoder.reload").Str("trigger", trigger).Msg("reloading encoder")
		if err := m.Terminate(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("terminate during reload failed")
		}
		err := m.Load(ctx)
		if errors.Is(err, encoder.ErrTerminated) {
			// Joined a load that our own Terminate aborted; start a fresh one.
			err = m.Load(ctx)
		}
		return nil, err
	})
	return err
}

// RecoverFrom reloads after generation gen failed, unless a newer generation
// is already serving.
func (m *Manager) RecoverFrom(ctx context.Context, gen uint64) error {
	m.mu.Lock()
	cur, st := m.gen, m.machine.State()
	m.mu.Unlock()

	if cur > gen && (st == StateReady || st == StateBusy) {
		m.logger.Debug().Uint64(log.FieldGeneration, cur).Msg("newer encoder already serving, skipping recovery")
		return nil
	}
	return m.Reload(ctx, TriggerFailure)
}
