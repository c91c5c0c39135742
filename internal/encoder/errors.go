// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package encoder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotReady is returned when no loaded encoder instance is available.
	ErrNotReady = errors.New("encoder not ready")
	// ErrTerminated is returned by an encoder instance after Terminate.
	ErrTerminated = errors.New("encoder terminated")
	// ErrDurationUnknown is returned by InputDuration when the input length cannot be read.
	ErrDurationUnknown = errors.New("input duration unknown")
)

// LoadError reports that the encoder could not be fetched or initialised.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("encoder load failed: %v", e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// BusyError rejects a job while another one is running.
type BusyError struct {
	// JobID identifies the in-flight job, when known.
	JobID string
}

func (e *BusyError) Error() string {
	if e.JobID == "" {
		return "encoder busy"
	}
	return fmt.Sprintf("encoder busy with job %s", e.JobID)
}

// EncodeError reports a failed encoder run.
type EncodeError struct {
	ExitCode int
	// Diagnostics holds the last encoder log lines.
	Diagnostics []string
	Err         error
}

func (e *EncodeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "encode failed (exit code %d)", e.ExitCode)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if n := len(e.Diagnostics); n > 0 {
		fmt.Fprintf(&b, ": %s", e.Diagnostics[n-1])
	}
	return b.String()
}

func (e *EncodeError) Unwrap() error { return e.Err }

// MissingOutputError reports a run that exited cleanly without producing its output.
type MissingOutputError struct {
	Name string
	Err  error
}

func (e *MissingOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("output %q missing: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("output %q missing or empty", e.Name)
}

func (e *MissingOutputError) Unwrap() error { return e.Err }
