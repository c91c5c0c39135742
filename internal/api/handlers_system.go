// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"

	"github.com/ManuGH/condense/internal/job"
	"github.com/ManuGH/condense/internal/lifecycle"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readyResponse struct {
	Ready   bool             `json:"ready"`
	Status  job.Status       `json:"status"`
	Encoder lifecycle.Status `json:"encoder"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: s.deps.Version})
}

// handleReady reports 503 until the encoder is loaded.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	snap := s.deps.Controller.Snapshot()
	resp := readyResponse{Status: snap.Status, Encoder: snap.Encoder}
	switch snap.Encoder.State {
	case lifecycle.StateReady, lifecycle.StateBusy:
		resp.Ready = true
		writeJSON(w, http.StatusOK, resp)
	default:
		writeJSON(w, http.StatusServiceUnavailable, resp)
	}
}
