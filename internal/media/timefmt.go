// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"fmt"
	"math"
	"strings"
)

// FormatClock renders seconds as "mm:ss", or "hh:mm:ss" once an hour is reached.
// NaN and infinities render as "00:00"; negatives clamp to zero.
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "00:00"
	}
	total := int64(math.Round(math.Max(0, seconds)))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatElapsed renders seconds as "1hr 2min 3sec", omitting leading zero units.
func FormatElapsed(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int64(math.Round(math.Max(0, seconds)))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	parts := make([]string, 0, 3)
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dhr", h))
	}
	if m > 0 || h > 0 {
		parts = append(parts, fmt.Sprintf("%dmin", m))
	}
	if s > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%dsec", s))
	}
	return strings.Join(parts, " ")
}
