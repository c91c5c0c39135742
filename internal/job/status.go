// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package job

import "github.com/ManuGH/condense/internal/fsm"

// Status is the controller-level job status.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusLoading    Status = "loading"
	StatusReady      Status = "ready"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Idle reports whether a new job may start from s.
func (s Status) Idle() bool {
	return s == StatusReady || s == StatusCompleted
}

type event string

const (
	evLoad       event = "load"
	evReload     event = "reload"
	evRecover    event = "recover"
	evLoaded     event = "loaded"
	evLoadFailed event = "load_failed"
	evStart      event = "start"
	evComplete   event = "complete"
	evFail       event = "fail"
)

func transitions() []fsm.Transition[Status, event] {
	return []fsm.Transition[Status, event]{
		{From: StatusNotStarted, Event: evLoad, To: StatusLoading},
		{From: StatusNotStarted, Event: evReload, To: StatusLoading},
		{From: StatusReady, Event: evReload, To: StatusLoading},
		{From: StatusCompleted, Event: evReload, To: StatusLoading},
		{From: StatusFailed, Event: evRecover, To: StatusLoading},
		{From: StatusLoading, Event: evLoaded, To: StatusReady},
		{From: StatusLoading, Event: evLoadFailed, To: StatusNotStarted},
		{From: StatusReady, Event: evStart, To: StatusRunning},
		{From: StatusCompleted, Event: evStart, To: StatusRunning},
		{From: StatusRunning, Event: evComplete, To: StatusCompleted},
		{From: StatusRunning, Event: evFail, To: StatusFailed},
	}
}
