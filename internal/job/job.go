// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package job

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/ManuGH/condense/internal/artifact"
	"github.com/ManuGH/condense/internal/command"
	"github.com/ManuGH/condense/internal/media"
	"github.com/ManuGH/condense/internal/settings"
)

// Input is an uploaded source file.
type Input struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Job is one compression run. Its arguments are fixed at construction.
type Job struct {
	ID         string
	InputName  string
	OutputName string
	Recipe     command.Recipe
	Format     media.Format
	Settings   settings.Settings
	Generation uint64
	StartedAt  time.Time

	args []string
	done chan struct{}

	// Written by the controller before done is closed.
	finishedAt time.Time
	artifact   artifact.Artifact
	err        error
}

// Args returns a copy of the encoder arguments.
func (j *Job) Args() []string { return slices.Clone(j.args) }

// Done is closed once the job completed or failed.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes or ctx is done. Cancelling ctx does not stop the job.
func (j *Job) Wait(ctx context.Context) (artifact.Artifact, error) {
	select {
	case <-j.done:
		return j.artifact, j.err
	case <-ctx.Done():
		return artifact.Artifact{}, ctx.Err()
	}
}

// Duration is the wall time of a finished job, or the time elapsed so far.
func (j *Job) Duration() time.Duration {
	select {
	case <-j.done:
		return j.finishedAt.Sub(j.StartedAt)
	default:
		return time.Since(j.StartedAt)
	}
}

// View is the serialisable form of a job.
type View struct {
	ID         string    `json:"id"`
	Input      string    `json:"input"`
	Output     string    `json:"output"`
	Recipe     string    `json:"recipe"`
	Format     string    `json:"format"`
	Args       []string  `json:"args"`
	Generation uint64    `json:"generation"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	ArtifactID string    `json:"artifact_id,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// view is called with the controller lock held.
func (j *Job) view() *View {
	v := &View{
		ID:         j.ID,
		Input:      j.InputName,
		Output:     j.OutputName,
		Recipe:     string(j.Recipe),
		Format:     string(j.Format),
		Args:       j.Args(),
		Generation: j.Generation,
		StartedAt:  j.StartedAt,
		FinishedAt: j.finishedAt,
		ArtifactID: j.artifact.ID,
	}
	if j.err != nil {
		v.Error = j.err.Error()
	}
	return v
}
