// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"

	"github.com/ManuGH/condense/internal/lifecycle"
)

func (s *Server) handleEncoderStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Controller.Snapshot().Encoder)
}

func (s *Server) handleEncoderLoad(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Controller.Load(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Controller.Snapshot())
}

func (s *Server) handleEncoderReload(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Controller.Reload(r.Context(), lifecycle.TriggerManual); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Controller.Snapshot())
}
