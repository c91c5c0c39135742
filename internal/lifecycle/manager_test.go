// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/condense/internal/encoder"
	"github.com/ManuGH/condense/internal/encoder/encodertest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newManager(def encodertest.Behavior) (*Manager, *encodertest.Factory) {
	fac := encodertest.NewFactory(def)
	return New(fac.New, encoder.Resources{Binary: "ffmpeg"}), fac
}

func TestLoad_ReadyAndIdempotent(t *testing.T) {
	m, fac := newManager(encodertest.Behavior{})
	assert.Equal(t, StateUninitialized, m.State())

	require.NoError(t, m.Load(context.Background()))
	assert.Equal(t, StateReady, m.State())
	assert.Equal(t, uint64(1), m.Generation())

	require.NoError(t, m.Load(context.Background()))
	assert.Equal(t, 1, fac.Count(), "loading when ready creates no new instance")

	st := m.Status()
	assert.Equal(t, "encodertest", st.Version)
	assert.False(t, st.LoadedAt.IsZero())
}

func TestLoad_FailureIsRetrySafe(t *testing.T) {
	fetchErr := errors.New("fetch failed")
	m, fac := newManager(encodertest.Behavior{})
	fac.Push(encodertest.Behavior{LoadErr: fetchErr})

	err := m.Load(context.Background())
	var loadErr *encoder.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, fetchErr)
	assert.Equal(t, StateUninitialized, m.State())
	assert.Equal(t, err, m.LastError())
	assert.True(t, fac.Instance(0).Terminated(), "failed instance is released")

	require.NoError(t, m.Load(context.Background()))
	assert.Equal(t, StateReady, m.State())
	assert.NoError(t, m.LastError())
}

func TestAcquire(t *testing.T) {
	m, _ := newManager(encodertest.Behavior{})

	_, err := m.Acquire()
	assert.ErrorIs(t, err, encoder.ErrNotReady)

	require.NoError(t, m.Load(context.Background()))
	lease, err := m.Acquire()
	require.NoError(t, err)
	assert.Equal(t, StateBusy, m.State())
	assert.Equal(t, uint64(1), lease.Generation)

	_, err = m.Acquire()
	var busy *encoder.BusyError
	assert.ErrorAs(t, err, &busy)

	lease.Release()
	lease.Release()
	assert.Equal(t, StateReady, m.State())
}

func TestLeaseRelease_StaleGenerationIgnored(t *testing.T) {
	m, _ := newManager(encodertest.Behavior{})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx))

	old, err := m.Acquire()
	require.NoError(t, err)

	require.NoError(t, m.Reload(ctx, TriggerManual))
	fresh, err := m.Acquire()
	require.NoError(t, err)

	old.Release()
	assert.Equal(t, StateBusy, m.State(), "stale lease must not release the new instance")
	fresh.Release()
	assert.Equal(t, StateReady, m.State())
}

func TestTerminate(t *testing.T) {
	m, fac := newManager(encodertest.Behavior{})
	ctx := context.Background()

	require.NoError(t, m.Terminate(ctx), "terminate from uninitialized")
	assert.Equal(t, StateTerminated, m.State())

	require.NoError(t, m.Load(ctx))
	_, err := m.Acquire()
	require.NoError(t, err)

	require.NoError(t, m.Terminate(ctx), "terminate from busy")
	assert.Equal(t, StateTerminated, m.State())
	assert.True(t, fac.Last().Terminated())
	require.NoError(t, m.Terminate(ctx), "terminate is idempotent")

	_, err = m.Acquire()
	assert.ErrorIs(t, err, encoder.ErrNotReady)
}

func TestReload_FreshInstance(t *testing.T) {
	m, fac := newManager(encodertest.Behavior{})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx))

	require.NoError(t, m.Reload(ctx, TriggerManual))
	assert.Equal(t, StateReady, m.State())
	assert.Equal(t, uint64(2), m.Generation())
	assert.Equal(t, 2, fac.Count())
	assert.True(t, fac.Instance(0).Terminated())
	assert.False(t, fac.Instance(1).Terminated())
}

func TestReload_FailureLeavesUninitialized(t *testing.T) {
	m, fac := newManager(encodertest.Behavior{})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx))

	fac.Push(encodertest.Behavior{LoadErr: errors.New("offline")})
	err := m.Reload(ctx, TriggerFailure)
	var loadErr *encoder.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, StateUninitialized, m.State())
}

func TestReload_ConcurrentCallersCoalesce(t *testing.T) {
	gate := make(chan struct{})
	m, fac := newManager(encodertest.Behavior{})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx))

	// Slow the next load down so every caller joins the same attempt.
	blocking := newBlockingFactory(fac.New, gate)
	m.factory = blocking.New

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Reload(ctx, TriggerWatchdog)
		}()
	}
	<-blocking.started
	time.Sleep(50 * time.Millisecond) // let the remaining callers join
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, blocking.count(), "reloads are coalesced")
	assert.Equal(t, StateReady, m.State())
}

func TestRecoverFrom_SkipsWhenNewerGenerationServing(t *testing.T) {
	m, fac := newManager(encodertest.Behavior{})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx))
	failedGen := m.Generation()

	// The watchdog already replaced the instance.
	require.NoError(t, m.Reload(ctx, TriggerWatchdog))
	require.NoError(t, m.RecoverFrom(ctx, failedGen))
	assert.Equal(t, 2, fac.Count(), "no extra reload")

	// Recovery for the current generation does reload.
	require.NoError(t, m.RecoverFrom(ctx, m.Generation()))
	assert.Equal(t, 3, fac.Count())
	assert.Equal(t, StateReady, m.State())
}

// blockingFactory delays Load of the instances it creates until gate closes.
type blockingFactory struct {
	inner   encoder.Factory
	gate    chan struct{}
	started chan struct{}
	once    sync.Once

	mu sync.Mutex
	n  int
}

func newBlockingFactory(inner encoder.Factory, gate chan struct{}) *blockingFactory {
	return &blockingFactory{inner: inner, gate: gate, started: make(chan struct{})}
}

func (b *blockingFactory) New() encoder.Encoder {
	b.mu.Lock()
	b.n++
	b.mu.Unlock()
	return &gatedEncoder{Encoder: b.inner(), b: b}
}

func (b *blockingFactory) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

type gatedEncoder struct {
	encoder.Encoder
	b *blockingFactory
}

func (g *gatedEncoder) Load(ctx context.Context, res encoder.Resources) error {
	g.b.once.Do(func() { close(g.b.started) })
	<-g.b.gate
	return g.Encoder.Load(ctx, res)
}
