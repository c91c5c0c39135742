// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package problem writes RFC 7807 problem details responses.
package problem

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/condense/internal/log"
)

// HeaderRequestID carries the request correlation ID.
const HeaderRequestID = "X-Request-ID"

// ContentType is the media type of problem responses.
const ContentType = "application/problem+json"

// Details is the response body.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// Fields lists offending parameters for validation problems.
	Fields []string `json:"fields,omitempty"`
}

// Write writes a problem response.
//
// type is a canonical identifier ("jobs/busy"), code a stable machine code
// ("BUSY") and detail the message for this occurrence.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, code, detail string, fields ...string) {
	d := Details{
		Type:   problemType,
		Title:  http.StatusText(status),
		Status: status,
		Code:   code,
		Detail: detail,
		Fields: fields,
	}
	if r != nil {
		d.Instance = r.URL.EscapedPath()
		d.RequestID = log.RequestIDFromContext(r.Context())
	}
	if d.RequestID == "" {
		d.RequestID = w.Header().Get(HeaderRequestID)
	}
	if d.RequestID != "" {
		w.Header().Set(HeaderRequestID, d.RequestID)
	}

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(d); err != nil {
		log.L().Error().Err(err).Str("type", problemType).Int("status", status).Msg("failed to encode problem response")
	}
}
