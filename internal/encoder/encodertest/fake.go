// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package encodertest provides a scriptable in-memory encoder for tests.
package encodertest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"time"

	"github.com/ManuGH/condense/internal/encoder"
)

// Behavior scripts what a Fake does.
type Behavior struct {
	LoadErr error

	// Progress ratios and Logs lines are emitted in order before the run finishes.
	Progress []float64
	Logs     []string

	// Gate, when set, holds Exec after the scripted events until it is closed.
	Gate <-chan struct{}
	// Started, when set, receives once Exec has emitted its events.
	Started chan<- struct{}

	ExitCode int
	ExecErr  error

	// Output is written under the last argument on success. Nil copies the input
	// named after "-i"; SkipOutput writes nothing.
	Output     []byte
	SkipOutput bool

	// WriteErr fails every WriteInput after the body has been read.
	WriteErr error
	// Duration is what InputDuration reports for staged inputs. Zero means unknown.
	Duration    time.Duration
	DurationErr error
}

// Fake is an in-memory encoder.Encoder.
type Fake struct {
	behavior Behavior

	mu         sync.Mutex
	files      map[string][]byte
	loaded     bool
	terminated bool
	execs      [][]string
	stop       chan struct{}
}

var (
	_ encoder.Encoder        = (*Fake)(nil)
	_ encoder.DurationReader = (*Fake)(nil)
)

// New returns an unloaded fake scripted by b.
func New(b Behavior) *Fake {
	return &Fake{behavior: b, files: make(map[string][]byte), stop: make(chan struct{})}
}

func (f *Fake) Load(ctx context.Context, _ encoder.Resources) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terminated {
		return encoder.ErrTerminated
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.behavior.LoadErr != nil {
		return f.behavior.LoadErr
	}
	f.loaded = true
	return nil
}

func (f *Fake) check() error {
	if f.terminated {
		return encoder.ErrTerminated
	}
	if !f.loaded {
		return encoder.ErrNotReady
	}
	return nil
}

func (f *Fake) WriteInput(_ context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	if f.behavior.WriteErr != nil {
		return f.behavior.WriteErr
	}
	f.files[name] = data
	return nil
}

func (f *Fake) InputDuration(_ context.Context, name string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return 0, err
	}
	if _, ok := f.files[name]; !ok {
		return 0, fmt.Errorf("read duration of %s: %w", name, fs.ErrNotExist)
	}
	if f.behavior.DurationErr != nil {
		return 0, f.behavior.DurationErr
	}
	if f.behavior.Duration <= 0 {
		return 0, encoder.ErrDurationUnknown
	}
	return f.behavior.Duration, nil
}

func (f *Fake) Exec(ctx context.Context, args []string, onEvent func(encoder.Event)) (int, error) {
	f.mu.Lock()
	if err := f.check(); err != nil {
		f.mu.Unlock()
		return -1, err
	}
	f.execs = append(f.execs, append([]string(nil), args...))
	stop := f.stop
	f.mu.Unlock()

	if onEvent == nil {
		onEvent = func(encoder.Event) {}
	}
	b := f.behavior
	for _, line := range b.Logs {
		onEvent(encoder.LogEvent(line))
	}
	for _, r := range b.Progress {
		onEvent(encoder.ProgressEvent(r))
	}
	if b.Started != nil {
		b.Started <- struct{}{}
	}
	if b.Gate != nil {
		select {
		case <-b.Gate:
		case <-stop:
			return -1, encoder.ErrTerminated
		case <-ctx.Done():
			return -1, ctx.Err()
		}
	}

	if b.ExecErr != nil {
		return -1, b.ExecErr
	}
	if b.ExitCode != 0 {
		return b.ExitCode, nil
	}
	if b.SkipOutput || len(args) == 0 {
		return 0, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terminated {
		return -1, encoder.ErrTerminated
	}
	out := b.Output
	if out == nil {
		out = f.files[inputName(args)]
	}
	f.files[args[len(args)-1]] = bytes.Clone(out)
	return 0, nil
}

func inputName(args []string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-i" {
			return args[i+1]
		}
	}
	return ""
}

func (f *Fake) ReadOutput(_ context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return nil, err
	}
	data, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", name, fs.ErrNotExist)
	}
	return bytes.Clone(data), nil
}

func (f *Fake) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	delete(f.files, name)
	return nil
}

func (f *Fake) Terminate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terminated {
		return nil
	}
	f.terminated = true
	close(f.stop)
	f.files = nil
	return nil
}

// Version identifies the fake in encoder status views.
func (f *Fake) Version() string { return "encodertest" }

// Files lists the names currently staged in the scratch space.
func (f *Fake) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	return names
}

// Execs returns copies of the argument lists Exec received.
func (f *Fake) Execs() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.execs...)
}

// Terminated reports whether Terminate was called.
func (f *Fake) Terminated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}
