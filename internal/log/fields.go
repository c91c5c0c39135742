// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID  = "request_id"
	FieldJobID      = "job_id"
	FieldArtifactID = "artifact_id"

	// Process / pipeline fields
	FieldEvent      = "event"
	FieldComponent  = "component"
	FieldRecipe     = "recipe"
	FieldGeneration = "generation"

	// Media fields
	FieldInput    = "input"
	FieldOutput   = "output"
	FieldFormat   = "format"
	FieldProgress = "progress"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath = "path"
)
