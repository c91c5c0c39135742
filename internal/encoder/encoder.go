// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package encoder defines the port between the job controller and a concrete encoder.
//
// An Encoder owns a private scratch space standing in for the encoder's filesystem.
// Names passed to WriteInput, ReadOutput and Remove are base names inside that space.
package encoder

import (
	"context"
	"io"
	"time"
)

// Resources locates what an encoder instance needs to become usable.
type Resources struct {
	// Binary is the encoder executable (path or name resolved via PATH).
	Binary string
	// WorkRoot is the directory under which the instance creates its scratch space.
	WorkRoot string
}

// EventKind discriminates Event payloads.
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventLog      EventKind = "log"
)

// Event is emitted by Exec while the encoder runs.
type Event struct {
	Kind EventKind
	// Ratio is the completed fraction in [0,1] for progress events.
	Ratio float64
	// Message is one encoder log line for log events.
	Message string
}

// ProgressEvent builds a progress event.
func ProgressEvent(ratio float64) Event { return Event{Kind: EventProgress, Ratio: ratio} }

// LogEvent builds a log event.
func LogEvent(msg string) Event { return Event{Kind: EventLog, Message: msg} }

// Encoder is one loaded encoder instance. It runs at most one Exec at a time.
// This interface MUST be implemented by adapters (ffmpeg process, test fakes).
type Encoder interface {
	// Load prepares the instance. It is called exactly once before any other method.
	Load(ctx context.Context, res Resources) error

	// WriteInput stages the input under name in the scratch space.
	WriteInput(ctx context.Context, name string, r io.Reader) error

	// Exec runs the encoder with args and blocks until it exits.
	// onEvent is invoked synchronously from the reading goroutine and must not block.
	// A non-nil error means the encoder could not be run or was interrupted;
	// otherwise exitCode carries the process result.
	Exec(ctx context.Context, args []string, onEvent func(Event)) (exitCode int, err error)

	// ReadOutput returns the bytes of name from the scratch space.
	ReadOutput(ctx context.Context, name string) ([]byte, error)

	// Remove deletes name from the scratch space. Missing names are not an error.
	Remove(name string) error

	// Terminate stops any running process and releases the instance.
	// Afterwards every method returns ErrTerminated.
	Terminate() error
}

// DurationReader is implemented by encoders that can measure a staged input.
// The job controller uses it to bound trim windows to the real input length.
type DurationReader interface {
	// InputDuration returns the duration of the staged input name, or ErrDurationUnknown.
	InputDuration(ctx context.Context, name string) (time.Duration, error)
}

// Factory creates fresh, unloaded encoder instances.
type Factory func() Encoder
