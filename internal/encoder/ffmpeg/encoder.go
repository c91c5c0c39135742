// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ffmpeg implements the encoder port on top of an ffmpeg child process.
//
// Each instance owns a private scratch directory that stands in for the encoder's
// filesystem. The process runs in its own process group so that Terminate can
// reach every descendant.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/condense/internal/encoder"
	"github.com/ManuGH/condense/internal/log"
	"github.com/ManuGH/condense/internal/media"
	"github.com/ManuGH/condense/internal/metrics"
	"github.com/ManuGH/condense/internal/procgroup"
)

// baseArgs precede every invocation: no banner, no stdin, machine-readable progress on stdout.
var baseArgs = []string{"-hide_banner", "-nostdin", "-progress", "pipe:1", "-nostats"}

// DefaultKillGrace is how long a terminated process gets between SIGTERM and SIGKILL.
const DefaultKillGrace = 2 * time.Second

// Encoder runs ffmpeg as a child process.
type Encoder struct {
	killGrace time.Duration
	ring      *encoder.LineRing

	mu         sync.Mutex
	binPath    string
	version    string
	dir        string
	loaded     bool
	terminated bool
	running    bool
	stop       chan struct{} // closed by Terminate to interrupt a running Exec
	execDone   chan struct{} // closed when the running Exec returns
}

var (
	_ encoder.Encoder        = (*Encoder)(nil)
	_ encoder.DurationReader = (*Encoder)(nil)
)

// New creates an unloaded ffmpeg encoder. A zero killGrace uses DefaultKillGrace.
func New(killGrace time.Duration) *Encoder {
	if killGrace <= 0 {
		killGrace = DefaultKillGrace
	}
	return &Encoder{
		killGrace: killGrace,
		ring:      encoder.NewLineRing(256),
		stop:      make(chan struct{}),
	}
}

// Factory returns an encoder.Factory producing ffmpeg encoders.
func Factory(killGrace time.Duration) encoder.Factory {
	return func() encoder.Encoder { return New(killGrace) }
}

// Load resolves the ffmpeg binary, checks that it runs and creates the scratch directory.
func (e *Encoder) Load(ctx context.Context, res encoder.Resources) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated {
		return encoder.ErrTerminated
	}
	if e.loaded {
		return nil
	}

	bin := res.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", bin, err)
	}

	out, err := exec.CommandContext(ctx, path, "-hide_banner", "-version").Output() // #nosec G204
	if err != nil {
		return fmt.Errorf("run %s: %w", path, err)
	}
	version, _, _ := strings.Cut(string(out), "\n")

	root := res.WorkRoot
	if root == "" {
		root = os.TempDir()
	}
	// #nosec G301 -- scratch space is private to this process
	if err := os.MkdirAll(root, 0o750); err != nil {
		return fmt.Errorf("create work root: %w", err)
	}
	dir, err := os.MkdirTemp(root, "encoder-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}

	e.binPath, e.version, e.dir, e.loaded = path, strings.TrimSpace(version), dir, true
	logger := log.WithComponentFromContext(ctx, "ffmpeg")
	logger.Info().
		Str("event", "encoder.loaded").
		Str("binary", path).
		Str("version", e.version).
		Str(log.FieldPath, dir).
		Msg("ffmpeg encoder loaded")
	return nil
}

// Version reports the first line of "ffmpeg -version" once loaded.
func (e *Encoder) Version() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// Dir returns the scratch directory, empty before Load.
func (e *Encoder) Dir() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dir
}

// pathFor maps a name into the scratch directory. Only the base name is used.
func (e *Encoder) pathFor(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminated {
		return "", encoder.ErrTerminated
	}
	if !e.loaded {
		return "", encoder.ErrNotReady
	}
	base := media.SanitizeName(name)
	return filepath.Join(e.dir, base), nil
}

// WriteInput stages r under name. The file appears atomically.
func (e *Encoder) WriteInput(ctx context.Context, name string, r io.Reader) error {
	path, err := e.pathFor(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pf, err := renameio.NewPendingFile(path, renameio.WithTempDir(filepath.Dir(path)), renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	defer func() { _ = pf.Cleanup() }()

	if _, err := io.Copy(pf, r); err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	return nil
}

// ReadOutput returns the content of name.
func (e *Encoder) ReadOutput(ctx context.Context, name string) ([]byte, error) {
	path, err := e.pathFor(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- confined to scratch dir
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Remove deletes name from the scratch directory.
func (e *Encoder) Remove(name string) error {
	path, err := e.pathFor(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// InputDuration reads the duration banner ffmpeg prints for a staged input.
// ffmpeg exits non-zero when no output is given, so only the banner matters.
func (e *Encoder) InputDuration(ctx context.Context, name string) (time.Duration, error) {
	path, err := e.pathFor(name)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	bin, dir := e.binPath, e.dir
	e.mu.Unlock()

	cmd := exec.CommandContext(ctx, bin, "-hide_banner", "-nostdin", "-i", filepath.Base(path)) // #nosec G204
	cmd.Dir = dir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, fmt.Errorf("read duration of %s: %w", name, err)
		}
	}
	for _, line := range strings.Split(stderr.String(), "\n") {
		if d, ok := parseDurationBanner(line); ok && d > 0 {
			return d, nil
		}
	}
	return 0, encoder.ErrDurationUnknown
}

// Exec runs ffmpeg with args inside the scratch directory.
// Cancelling ctx or calling Terminate stops the process group and returns an error.
func (e *Encoder) Exec(ctx context.Context, args []string, onEvent func(encoder.Event)) (int, error) {
	e.mu.Lock()
	switch {
	case e.terminated:
		e.mu.Unlock()
		return -1, encoder.ErrTerminated
	case !e.loaded:
		e.mu.Unlock()
		return -1, encoder.ErrNotReady
	case e.running:
		e.mu.Unlock()
		return -1, errors.New("ffmpeg: exec already running")
	}
	e.running = true
	e.execDone = make(chan struct{})
	bin, dir, stop, done := e.binPath, e.dir, e.stop, e.execDone
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(done)
	}()

	if onEvent == nil {
		onEvent = func(encoder.Event) {}
	}
	logger := log.WithComponentFromContext(ctx, "ffmpeg")
	e.ring.Reset()

	full := make([]string, 0, len(baseArgs)+len(args))
	full = append(full, baseArgs...)
	full = append(full, args...)

	cmd := exec.Command(bin, full...) // #nosec G204 -- args come from the command builder, no shell
	cmd.Dir = dir
	procgroup.Set(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		metrics.RecordFFmpegExit("start_failed")
		return -1, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		metrics.RecordFFmpegExit("start_failed")
		return -1, fmt.Errorf("ffmpeg stderr: %w", err)
	}

	tracker := newProgressTracker(args)
	var emitMu sync.Mutex
	emit := func(ev encoder.Event) {
		emitMu.Lock()
		defer emitMu.Unlock()
		onEvent(ev)
	}

	logger.Debug().Str("command", cmd.String()).Msg("starting ffmpeg process")
	if err := cmd.Start(); err != nil {
		metrics.RecordFFmpegExit("start_failed")
		return -1, fmt.Errorf("ffmpeg start failed: %w", err)
	}

	var ioWg sync.WaitGroup
	ioWg.Add(2)
	go func() {
		defer ioWg.Done()
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			emitMu.Lock()
			ratio, ok := tracker.ParseLine(sc.Text())
			emitMu.Unlock()
			if ok {
				emit(encoder.ProgressEvent(ratio))
			}
		}
		_, _ = io.Copy(io.Discard, stdout)
	}()
	go func() {
		defer ioWg.Done()
		sc := bufio.NewScanner(stderr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			e.ring.Add(line)
			emitMu.Lock()
			tracker.ObserveLog(line)
			emitMu.Unlock()
			emit(encoder.LogEvent(line))
		}
		_, _ = io.Copy(io.Discard, stderr)
	}()

	// Pipes must be drained before Wait closes them.
	waitCh := make(chan error, 1)
	go func() {
		ioWg.Wait()
		waitCh <- cmd.Wait()
	}()

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-ctx.Done():
		_ = procgroup.Terminate(cmd, waitCh, e.killGrace)
		metrics.RecordFFmpegExit("ctx_cancel")
		return -1, fmt.Errorf("ffmpeg interrupted: %w", ctx.Err())
	case <-stop:
		_ = procgroup.Terminate(cmd, waitCh, e.killGrace)
		metrics.RecordFFmpegExit("terminated")
		return -1, encoder.ErrTerminated
	}

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) || exitErr.ExitCode() < 0 {
			metrics.RecordFFmpegExit("error")
			return -1, fmt.Errorf("ffmpeg: %w", waitErr)
		}
		code = exitErr.ExitCode()
	}

	reason := "clean"
	if code != 0 {
		reason = "error"
		logger.Error().
			Int("exit_code", code).
			Strs("stderr", e.ring.LastN(20)).
			Msg("ffmpeg exited with failure")
	}
	metrics.RecordFFmpegExit(reason)
	return code, nil
}

// Terminate stops a running process, removes the scratch directory and
// makes the instance unusable. It is idempotent.
func (e *Encoder) Terminate() error {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return nil
	}
	e.terminated = true
	close(e.stop)
	running, done, dir := e.running, e.execDone, e.dir
	e.mu.Unlock()

	if running {
		<-done
	}
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove scratch dir: %w", err)
	}
	return nil
}
