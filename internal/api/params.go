// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"strconv"
	"strings"

	"github.com/ManuGH/condense/internal/media"
	"github.com/ManuGH/condense/internal/settings"
)

// parseSettings reads job settings from form or query values. Missing values
// keep the defaults.
func parseSettings(get func(string) string) (settings.Settings, error) {
	s := settings.Default()

	if v := strings.TrimSpace(get("quality")); v != "" {
		q, err := settings.ParseQuality(v)
		if err != nil {
			return s, &ParamError{Field: "quality", Err: err}
		}
		s.Quality = q
	}
	if v := strings.TrimSpace(get("format")); v != "" {
		f, err := media.ParseFormat(v)
		if err != nil {
			return s, &ParamError{Field: "format", Err: err}
		}
		s.Format = f
	}
	if v := strings.TrimSpace(get("preset")); v != "" {
		p, err := settings.ParsePreset(v)
		if err != nil {
			return s, &ParamError{Field: "preset", Err: err}
		}
		s = s.TogglePreset(p)
	}
	if v := strings.TrimSpace(get("remove_audio")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, &ParamError{Field: "remove_audio", Err: err}
		}
		s.RemoveAudio = b
	}
	var err error
	if s.TrimStart, err = parseSeconds(get, "trim_start"); err != nil {
		return s, err
	}
	if s.TrimEnd, err = parseSeconds(get, "trim_end"); err != nil {
		return s, err
	}
	return s, nil
}

func parseSeconds(get func(string) string, field string) (float64, error) {
	v := strings.TrimSpace(get(field))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &ParamError{Field: field, Err: err}
	}
	return f, nil
}
