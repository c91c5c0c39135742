// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by job and encoder spans.
const (
	JobIDKey       = "job.id"
	JobStatusKey   = "job.status"
	JobRecipeKey   = "job.recipe"
	JobInputKey    = "job.input"
	JobOutputKey   = "job.output"
	JobFormatKey   = "job.format"
	JobInputBytes  = "job.input_bytes"
	JobOutputBytes = "job.output_bytes"

	EncoderGenerationKey = "encoder.generation"
	EncoderExitCodeKey   = "encoder.exit_code"

	ErrorTypeKey = "error.type"
)

// JobAttributes describes a job at start.
func JobAttributes(id, recipe, input, output, format string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobIDKey, id),
		attribute.String(JobRecipeKey, recipe),
		attribute.String(JobInputKey, input),
		attribute.String(JobOutputKey, output),
		attribute.String(JobFormatKey, format),
	}
}

// EncoderAttributes describes the encoder instance a job ran on.
func EncoderAttributes(generation uint64, exitCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(EncoderGenerationKey, int64(generation)),
		attribute.Int(EncoderExitCodeKey, exitCode),
	}
}

// ErrorAttributes tags a span with a coarse error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(ErrorTypeKey, errorType)}
}
