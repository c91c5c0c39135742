// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"strings"

	"github.com/ManuGH/condense/internal/command"
	"github.com/ManuGH/condense/internal/media"
	"github.com/ManuGH/condense/internal/settings"
)

type previewResponse struct {
	Recipe   command.Recipe    `json:"recipe"`
	Input    string            `json:"input"`
	Output   string            `json:"output"`
	Settings settings.Settings `json:"settings"`
	Args     []string          `json:"args"`
}

// handlePreview returns the command a job would run, without running it.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := strings.TrimSpace(q.Get("input"))
	if raw == "" {
		writeError(w, r, &ParamError{Field: "input", Err: errMissing})
		return
	}
	name := media.SanitizeName(raw)
	cfg, err := parseSettings(q.Get)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := settings.Validate(cfg); err != nil {
		writeError(w, r, err)
		return
	}
	out := command.OutputName(name, cfg)
	writeJSON(w, http.StatusOK, previewResponse{
		Recipe:   command.RecipeFor(name, cfg),
		Input:    name,
		Output:   out,
		Settings: cfg,
		Args:     command.Build(name, out, cfg),
	})
}
