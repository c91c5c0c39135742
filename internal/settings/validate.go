// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package settings

import (
	"fmt"
	"math"
)

// InvalidRangeError reports a trim window that cannot be encoded.
type InvalidRangeError struct {
	Start  float64
	End    float64
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid trim range [%.3f, %.3f]: %s", e.Start, e.End, e.Reason)
}

// Validate checks the trim window. It runs once per job before any input is staged.
func Validate(s Settings) error {
	if math.IsNaN(s.TrimStart) || math.IsNaN(s.TrimEnd) {
		return &InvalidRangeError{Start: s.TrimStart, End: s.TrimEnd, Reason: "trim bounds must be numbers"}
	}
	if math.IsInf(s.TrimStart, 0) || math.IsInf(s.TrimEnd, 0) {
		return &InvalidRangeError{Start: s.TrimStart, End: s.TrimEnd, Reason: "trim bounds must be finite"}
	}
	if s.TrimEnd < s.TrimStart {
		return &InvalidRangeError{Start: s.TrimStart, End: s.TrimEnd, Reason: "end time cannot be less than start time"}
	}
	if s.TrimStart < 0 {
		return &InvalidRangeError{Start: s.TrimStart, End: s.TrimEnd, Reason: "start time cannot be negative"}
	}
	return nil
}
