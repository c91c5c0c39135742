// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ManuGH/condense/internal/api/problem"
	"github.com/ManuGH/condense/internal/artifact"
	"github.com/ManuGH/condense/internal/encoder"
	"github.com/ManuGH/condense/internal/job"
	"github.com/ManuGH/condense/internal/log"
	"github.com/ManuGH/condense/internal/settings"
)

// ParamError reports a malformed request parameter.
type ParamError struct {
	Field string
	Err   error
}

func (e *ParamError) Error() string { return fmt.Sprintf("invalid %s: %v", e.Field, e.Err) }
func (e *ParamError) Unwrap() error { return e.Err }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, code, detail string, fields ...string) {
	problem.Write(w, r, status, problemType, code, detail, fields...)
}

// writeError maps core errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		paramErr *ParamError
		rangeErr *settings.InvalidRangeError
		busyErr  *encoder.BusyError
		loadErr  *encoder.LoadError
		sizeErr  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &paramErr):
		writeProblem(w, r, http.StatusBadRequest, "request/invalid_parameter", "INVALID_PARAMETER", err.Error(), paramErr.Field)
	case errors.As(err, &rangeErr):
		writeProblem(w, r, http.StatusBadRequest, "jobs/invalid_range", "INVALID_RANGE", err.Error(), "trim_start", "trim_end")
	case errors.As(err, &sizeErr):
		writeProblem(w, r, http.StatusRequestEntityTooLarge, "jobs/too_large", "TOO_LARGE",
			fmt.Sprintf("upload exceeds %d bytes", sizeErr.Limit))
	case errors.Is(err, job.ErrUnsupportedInput):
		writeProblem(w, r, http.StatusUnsupportedMediaType, "jobs/unsupported_input", "UNSUPPORTED_INPUT", err.Error(), "file")
	case errors.As(err, &busyErr):
		writeProblem(w, r, http.StatusConflict, "jobs/busy", "BUSY", err.Error())
	case errors.As(err, &loadErr):
		writeProblem(w, r, http.StatusServiceUnavailable, "encoder/load_failed", "LOAD_FAILED", err.Error())
	case errors.Is(err, encoder.ErrNotReady), errors.Is(err, job.ErrClosed):
		writeProblem(w, r, http.StatusServiceUnavailable, "encoder/not_ready", "NOT_READY", err.Error())
	case errors.Is(err, artifact.ErrNotFound):
		writeProblem(w, r, http.StatusNotFound, "artifacts/not_found", "NOT_FOUND", err.Error())
	default:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldPath, r.URL.Path).Msg("request failed")
		writeProblem(w, r, http.StatusInternalServerError, "system/internal", "INTERNAL", "internal server error")
	}
}

var errMissing = errors.New("required")
