// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package job runs one compression job at a time against the lifecycle-managed encoder.
//
// The Controller validates settings, stages the input, runs the encoder, turns
// progress events into a monotonic percentage and packages the output as an
// artifact. A failed job triggers an asynchronous encoder reload; the status
// returns to ready without the caller loading again.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/condense/internal/artifact"
	"github.com/ManuGH/condense/internal/command"
	"github.com/ManuGH/condense/internal/encoder"
	"github.com/ManuGH/condense/internal/fsm"
	"github.com/ManuGH/condense/internal/lifecycle"
	"github.com/ManuGH/condense/internal/log"
	"github.com/ManuGH/condense/internal/media"
	"github.com/ManuGH/condense/internal/metrics"
	"github.com/ManuGH/condense/internal/settings"
	"github.com/ManuGH/condense/internal/telemetry"
)

// ErrUnsupportedInput rejects uploads that are not video files.
var ErrUnsupportedInput = errors.New("input is not a supported video file")

// ErrClosed is returned once the controller has been closed.
var ErrClosed = errors.New("job controller closed")

const diagnosticLines = 20

// Options tune a Controller.
type Options struct {
	// ProgressLogInterval throttles progress debug logs. Zero means one second.
	ProgressLogInterval time.Duration
}

// Controller owns the job state machine.
type Controller struct {
	mgr    *lifecycle.Manager
	store  *artifact.Store
	logger zerolog.Logger
	tracer trace.Tracer
	hub    *hub
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	machine    *fsm.Machine[Status, event]
	current    *Job
	progress   int
	artifactID string
	lastErr    error
	closed     bool
}

// New wires a controller to the lifecycle manager and artifact store.
func New(mgr *lifecycle.Manager, store *artifact.Store, opts Options) *Controller {
	if opts.ProgressLogInterval <= 0 {
		opts.ProgressLogInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		mgr:     mgr,
		store:   store,
		logger:  log.WithComponent("job"),
		tracer:  telemetry.Tracer("github.com/ManuGH/condense/internal/job"),
		hub:     newHub(),
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		machine: fsm.MustNew(StatusNotStarted, transitions()),
	}
	c.machine.Observe(func(from, to Status, ev event) {
		c.logger.Info().
			Str(log.FieldEvent, "job."+string(ev)).
			Str(log.FieldOldState, string(from)).
			Str(log.FieldNewState, string(to)).
			Msg("job status changed")
	})
	return c
}

// fire applies ev and publishes the new status. Callers hold c.mu.
func (c *Controller) fire(ev event) error {
	to, err := c.machine.Fire(context.Background(), ev)
	if err != nil {
		return err
	}
	e := Event{Type: EventStatus, Status: to, Progress: c.progress}
	if c.current != nil {
		e.JobID = c.current.ID
	}
	c.hub.publish(e)
	return nil
}

// Status returns the current status.
func (c *Controller) Status() Status {
	return c.machine.State()
}

// LastError returns the most recent job or recovery failure.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Subscribe registers an observer with the given channel buffer.
func (c *Controller) Subscribe(buffer int) *Subscription {
	return c.hub.subscribe(buffer)
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	Status    Status             `json:"status"`
	Progress  int                `json:"progress"`
	Job       *View              `json:"job,omitempty"`
	Artifact  *artifact.Artifact `json:"artifact,omitempty"`
	LastError string             `json:"last_error,omitempty"`
	Encoder   lifecycle.Status   `json:"encoder"`
}

// Snapshot returns the current status, progress and job.
func (c *Controller) Snapshot() Snapshot {
	enc := c.mgr.Status()

	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Status:   c.machine.State(),
		Progress: c.progress,
		Encoder:  enc,
	}
	if c.current != nil {
		s.Job = c.current.view()
	}
	if c.artifactID != "" {
		if a, ok := c.store.Get(c.artifactID); ok {
			s.Artifact = &a
		}
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// Load loads the encoder and moves the controller to ready.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch st := c.machine.State(); st {
	case StatusReady, StatusCompleted, StatusRunning:
		c.mu.Unlock()
		return nil
	case StatusNotStarted:
		_ = c.fire(evLoad)
	case StatusFailed:
		_ = c.fire(evRecover)
	}
	c.mu.Unlock()

	err := c.mgr.Load(ctx)
	c.settle(err)
	return err
}

// settle resolves a pending loading status after a manager load or reload.
func (c *Controller) settle(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine.State() != StatusLoading {
		return
	}
	if err != nil {
		c.lastErr = err
		_ = c.fire(evLoadFailed)
		return
	}
	_ = c.fire(evLoaded)
}

// Reload forces a fresh encoder instance. A running job fails and the
// controller recovers as it does for any failed job.
func (c *Controller) Reload(ctx context.Context, trigger string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	st := c.machine.State()
	if c.machine.Can(evReload) {
		_ = c.fire(evReload)
	}
	c.mu.Unlock()

	err := c.mgr.Reload(ctx, trigger)
	if st != StatusRunning {
		c.settle(err)
	}
	if err != nil {
		c.logger.Error().Err(err).Str("trigger", trigger).Msg("encoder reload failed")
	}
	return err
}

// Start validates s, stages the input and launches the job. Rejections are
// synchronous: *settings.InvalidRangeError, ErrUnsupportedInput,
// *encoder.BusyError or encoder.ErrNotReady.
func (c *Controller) Start(ctx context.Context, in Input, s settings.Settings) (*Job, error) {
	if err := settings.Validate(s); err != nil {
		metrics.RecordJobRejected("invalid")
		return nil, err
	}
	if !media.IsAcceptedInput(in.ContentType, in.Name) {
		metrics.RecordJobRejected("unsupported")
		return nil, ErrUnsupportedInput
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	switch st := c.machine.State(); {
	case st == StatusRunning:
		busy := &encoder.BusyError{}
		if c.current != nil {
			busy.JobID = c.current.ID
		}
		c.mu.Unlock()
		metrics.RecordJobRejected("busy")
		return nil, busy
	case !st.Idle():
		c.mu.Unlock()
		metrics.RecordJobRejected("not_ready")
		return nil, encoder.ErrNotReady
	}
	lease, err := c.mgr.Acquire()
	if err != nil {
		c.mu.Unlock()
		var busy *encoder.BusyError
		if errors.As(err, &busy) {
			metrics.RecordJobRejected("busy")
		} else {
			metrics.RecordJobRejected("not_ready")
		}
		return nil, err
	}
	c.mu.Unlock()

	id := uuid.NewString()
	ctx = log.ContextWithJobID(ctx, id)
	logger := log.WithContext(ctx, c.logger)

	inputName := media.SanitizeName(in.Name)
	body := &trackingReader{r: in.Body}
	if err := lease.Encoder.WriteInput(ctx, inputName, body); err != nil {
		if body.err != nil || ctx.Err() != nil {
			// The upload broke, not the encoder.
			lease.Release()
		} else {
			c.recoverAsync(ctx, id, lease)
		}
		return nil, fmt.Errorf("stage input: %w", err)
	}

	s, err = c.boundTrim(ctx, lease.Encoder, inputName, s)
	if err != nil {
		_ = lease.Encoder.Remove(inputName)
		lease.Release()
		metrics.RecordJobRejected("invalid")
		return nil, err
	}

	outputName := command.OutputName(inputName, s)
	j := &Job{
		ID:         id,
		InputName:  inputName,
		OutputName: outputName,
		Recipe:     command.RecipeFor(inputName, s),
		Format:     s.EffectiveFormat(),
		Settings:   s,
		Generation: lease.Generation,
		args:       command.Build(inputName, outputName, s),
		done:       make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed || c.fire(evStart) != nil {
		c.mu.Unlock()
		_ = lease.Encoder.Remove(inputName)
		lease.Release()
		return nil, encoder.ErrNotReady
	}
	prev := c.artifactID
	c.artifactID = ""
	j.StartedAt = time.Now()
	c.current = j
	c.progress = 0
	c.wg.Add(1)
	c.mu.Unlock()

	if prev != "" {
		c.store.Release(prev)
	}

	logger.Info().
		Str(log.FieldRecipe, string(j.Recipe)).
		Str(log.FieldInput, j.InputName).
		Str(log.FieldOutput, j.OutputName).
		Strs("args", j.args).
		Msg("job started")

	// The job outlives the caller's request but not the controller.
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(c.ctx, cancel)
	go func() {
		defer c.wg.Done()
		defer cancel()
		defer stop()
		c.run(jobCtx, j, lease)
	}()
	return j, nil
}

// boundTrim clamps the trim window to the staged input's duration when the
// encoder can measure it. A window that starts past the end is rejected.
func (c *Controller) boundTrim(ctx context.Context, enc encoder.Encoder, name string, s settings.Settings) (settings.Settings, error) {
	p, ok := enc.(encoder.DurationReader)
	if !ok || !s.HasTrim() {
		return s, nil
	}
	d, err := p.InputDuration(ctx, name)
	if err != nil {
		logger := log.WithContext(ctx, c.logger)
		logger.Debug().Err(err).Str(log.FieldInput, name).Msg("input duration unavailable, trim left as requested")
		return s, nil
	}
	bounded := s.ClampTrim(d.Seconds())
	if s.TrimEnd > s.TrimStart && bounded.TrimEnd <= bounded.TrimStart {
		return s, &settings.InvalidRangeError{Start: s.TrimStart, End: s.TrimEnd, Reason: "start time is past the end of the input"}
	}
	return bounded, nil
}

// trackingReader remembers the first read error of the upload body.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

// recoverAsync replaces an encoder that failed to stage an input.
func (c *Controller) recoverAsync(ctx context.Context, jobID string, lease *lifecycle.Lease) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		lease.Release()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		c.recover(context.WithoutCancel(ctx), jobID, lease)
	}()
}

// Run starts a job and waits for its result.
func (c *Controller) Run(ctx context.Context, in Input, s settings.Settings) (artifact.Artifact, error) {
	j, err := c.Start(ctx, in, s)
	if err != nil {
		return artifact.Artifact{}, err
	}
	return j.Wait(ctx)
}

func (c *Controller) run(ctx context.Context, j *Job, lease *lifecycle.Lease) {
	ctx, span := c.tracer.Start(ctx, "job.run",
		trace.WithAttributes(telemetry.JobAttributes(j.ID, string(j.Recipe), j.InputName, j.OutputName, string(j.Format))...))
	defer span.End()

	logger := log.WithContext(ctx, c.logger)
	enc := lease.Encoder
	diag := encoder.NewLineRing(64)
	progressLog := rate.Sometimes{Interval: c.opts.ProgressLogInterval}

	code, execErr := enc.Exec(ctx, j.Args(), func(ev encoder.Event) {
		switch ev.Kind {
		case encoder.EventProgress:
			if p, ok := c.advance(j, ev.Ratio); ok {
				progressLog.Do(func() {
					logger.Debug().Int(log.FieldProgress, p).Msg("job progress")
				})
			}
		case encoder.EventLog:
			diag.Add(ev.Message)
			logger.Trace().Str("line", ev.Message).Msg("encoder log")
			c.hub.publish(Event{Type: EventLog, JobID: j.ID, Status: StatusRunning, Message: ev.Message})
		}
	})
	span.SetAttributes(telemetry.EncoderAttributes(j.Generation, code)...)

	var (
		data   []byte
		runErr error
	)
	switch {
	case execErr != nil:
		runErr = &encoder.EncodeError{ExitCode: code, Diagnostics: diag.LastN(diagnosticLines), Err: execErr}
	case code != 0:
		runErr = &encoder.EncodeError{ExitCode: code, Diagnostics: diag.LastN(diagnosticLines)}
	default:
		out, err := enc.ReadOutput(ctx, j.OutputName)
		switch {
		case err != nil:
			runErr = &encoder.MissingOutputError{Name: j.OutputName, Err: err}
		case len(out) == 0:
			runErr = &encoder.MissingOutputError{Name: j.OutputName}
		default:
			data = out
		}
	}

	for _, name := range []string{j.InputName, j.OutputName} {
		if err := enc.Remove(name); err != nil && !errors.Is(err, encoder.ErrTerminated) {
			logger.Debug().Err(err).Str(log.FieldPath, name).Msg("remove scratch file")
		}
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "encode failed")
		c.fail(ctx, j, runErr)
		c.recover(ctx, j.ID, lease)
		return
	}

	a := c.store.Put(j.OutputName, j.Format.MediaType(), data)
	lease.Release()
	c.complete(ctx, j, a)
}

// advance records a progress ratio. Progress never decreases.
func (c *Controller) advance(j *Job, ratio float64) (int, bool) {
	if math.IsNaN(ratio) {
		return 0, false
	}
	p := int(math.Round(ratio * 100))
	p = min(max(p, 0), 100)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != j || c.machine.State() != StatusRunning || p <= c.progress {
		return 0, false
	}
	c.progress = p
	c.hub.publish(Event{Type: EventProgress, JobID: j.ID, Status: StatusRunning, Progress: p})
	return p, true
}

func (c *Controller) complete(ctx context.Context, j *Job, a artifact.Artifact) {
	c.mu.Lock()
	j.finishedAt = time.Now()
	j.artifact = a
	c.artifactID = a.ID
	c.progress = 100
	_ = c.fire(evComplete)
	c.hub.publish(Event{Type: EventCompleted, JobID: j.ID, Status: StatusCompleted, Progress: 100, Artifact: &a})
	close(j.done)
	c.mu.Unlock()

	d := j.Duration()
	metrics.RecordJob(string(j.Recipe), "completed", d)
	telemetry.RecordJobOutcome(ctx, string(j.Recipe), "completed", d)
	logger := log.WithContext(ctx, c.logger)
	logger.Info().
		Str(log.FieldArtifactID, a.ID).
		Int64("size", a.Size).
		Str("elapsed", media.FormatElapsed(d.Seconds())).
		Msg("job completed")
}

func (c *Controller) fail(ctx context.Context, j *Job, err error) {
	c.mu.Lock()
	j.finishedAt = time.Now()
	j.err = err
	c.lastErr = err
	_ = c.fire(evFail)
	c.hub.publish(Event{Type: EventFailed, JobID: j.ID, Status: StatusFailed, Progress: c.progress, Error: err.Error()})
	close(j.done)
	c.mu.Unlock()

	metrics.RecordJob(string(j.Recipe), "failed", j.Duration())
	telemetry.RecordJobOutcome(ctx, string(j.Recipe), "failed", j.Duration())
	logger := log.WithContext(ctx, c.logger)
	logger.Error().Err(err).Msg("job failed")
}

// recover replaces the encoder instance behind lease. A newer instance loaded
// in the meantime is kept.
func (c *Controller) recover(ctx context.Context, jobID string, lease *lifecycle.Lease) {
	defer lease.Release()

	if c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	if c.machine.State() == StatusFailed {
		_ = c.fire(evRecover)
	} else if c.machine.Can(evReload) {
		_ = c.fire(evReload)
	}
	c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "job.recover")
	defer span.End()

	// Recovery finishes even when the job context is already gone.
	err := c.mgr.RecoverFrom(context.WithoutCancel(ctx), lease.Generation)
	c.settle(err)
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "recovery failed")
	logger := log.WithContext(ctx, c.logger)
	logger.Error().Err(err).Str(log.FieldEvent, "job.recovery_failed").Msg("encoder recovery failed")
	c.hub.publish(Event{Type: EventRecoveryError, JobID: jobID, Status: c.Status(), Error: err.Error()})
}

// Close stops accepting jobs, interrupts a running one, waits for recovery
// and detaches all subscribers. The encoder itself is left to its owner.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.hub.close()
}
