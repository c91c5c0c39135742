// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/condense/internal/artifact"
	"github.com/ManuGH/condense/internal/log"
)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	a, body, err := s.deps.Store.Open(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", a.MediaType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	http.ServeContent(w, r, a.Name, a.CreatedAt, body)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.deps.Store.Release(id) {
		writeError(w, r, artifact.ErrNotFound)
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().Str(log.FieldArtifactID, id).Msg("artifact released")
	w.WriteHeader(http.StatusNoContent)
}

type exportResponse struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.ExportDir == "" {
		writeProblem(w, r, http.StatusNotImplemented, "artifacts/export_disabled", "EXPORT_DISABLED", "no export directory configured")
		return
	}
	id := chi.URLParam(r, "id")
	path, err := s.deps.Store.Export(r.Context(), id, s.deps.ExportDir)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{ID: id, Path: path})
}
