// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/condense/internal/job"
	"github.com/ManuGH/condense/internal/log"
)

// multipartMemory is the part of an upload kept in memory before spilling to disk.
const multipartMemory = 32 << 20

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var sizeErr *http.MaxBytesError
		if errors.As(err, &sizeErr) {
			writeError(w, r, sizeErr)
			return
		}
		writeError(w, r, &ParamError{Field: "body", Err: err})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, &ParamError{Field: "file", Err: err})
		return
	}
	defer func() { _ = file.Close() }()

	cfg, err := parseSettings(r.FormValue)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in := job.Input{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}
	j, err := s.deps.Controller.Start(r.Context(), in, cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldJobID, j.ID).
		Str(log.FieldInput, j.InputName).
		Int64("size", header.Size).
		Msg("job accepted")

	w.Header().Set("Location", "/api/v1/jobs/current")
	snap := s.deps.Controller.Snapshot()
	if snap.Job != nil && snap.Job.ID == j.ID {
		writeJSON(w, http.StatusAccepted, snap.Job)
		return
	}
	// The job already moved on; report what we started.
	writeJSON(w, http.StatusAccepted, map[string]string{"id": j.ID})
}

func (s *Server) handleCurrentJob(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Controller.Snapshot())
}

// handleEvents streams controller events as server-sent events. The first
// event is a snapshot so clients need no separate fetch.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	sub := s.deps.Controller.Subscribe(64)
	defer sub.Close()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	logger := log.WithComponentFromContext(r.Context(), "api")
	if err := writeSSE(w, "snapshot", s.deps.Controller.Snapshot()); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		logger.Debug().Err(err).Msg("event stream not flushable")
		return
	}

	ping := time.NewTicker(s.deps.Heartbeat)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeSSE(w, string(ev.Type), ev); err != nil {
				return
			}
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
