// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package settings defines the per-job compression settings value and its validation.
package settings

import (
	"fmt"
	"math"
	"strings"

	"github.com/ManuGH/condense/internal/media"
)

// Quality selects an encoder CRF/preset pair.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// ParseQuality resolves a case-insensitive quality name.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case QualityHigh, QualityMedium, QualityLow:
		return q, nil
	}
	return "", fmt.Errorf("unsupported quality %q", s)
}

// Preset is a publishing target that overrides manual quality and format.
// Exactly one value holds at a time, so presets are mutually exclusive by construction.
type Preset string

const (
	PresetNone           Preset = "none"
	PresetTwitter        Preset = "twitter"
	PresetWhatsAppStatus Preset = "whatsapp_status"
)

// ParsePreset resolves a preset name. The empty string means no preset.
func ParsePreset(s string) (Preset, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "", "none":
		return PresetNone, nil
	case "twitter", "x":
		return PresetTwitter, nil
	case "whatsapp_status", "whatsapp", "whatsappstatus":
		return PresetWhatsAppStatus, nil
	}
	return "", fmt.Errorf("unsupported preset %q", s)
}

// Settings describes the desired output of one conversion.
type Settings struct {
	Quality     Quality      `json:"quality" yaml:"quality"`
	Format      media.Format `json:"format" yaml:"format"`
	RemoveAudio bool         `json:"remove_audio" yaml:"remove_audio"`
	Preset      Preset       `json:"preset" yaml:"preset"`
	TrimStart   float64      `json:"trim_start" yaml:"trim_start"`
	TrimEnd     float64      `json:"trim_end" yaml:"trim_end"`
}

// Default returns the settings a fresh session starts with.
func Default() Settings {
	return Settings{
		Quality: QualityHigh,
		Format:  media.FormatMP4,
		Preset:  PresetNone,
	}
}

// TogglePreset selects p and clears any other preset.
// Toggling the preset that is already selected returns to PresetNone.
func (s Settings) TogglePreset(p Preset) Settings {
	if p == "" || p == PresetNone || s.ActivePreset() == p {
		s.Preset = PresetNone
		return s
	}
	s.Preset = p
	return s
}

// ActivePreset normalises the zero value to PresetNone.
func (s Settings) ActivePreset() Preset {
	if s.Preset == "" {
		return PresetNone
	}
	return s.Preset
}

// EffectiveFormat is the container actually produced: presets always emit mp4.
func (s Settings) EffectiveFormat() media.Format {
	if s.ActivePreset() != PresetNone {
		return media.FormatMP4
	}
	if s.Format == "" {
		return media.FormatMP4
	}
	return s.Format
}

// HasTrim reports whether a trim window is set. Both bounds zero means full length.
func (s Settings) HasTrim() bool {
	return s.TrimStart != 0 || s.TrimEnd != 0
}

// TrimDuration is the length of the trim window in seconds.
func (s Settings) TrimDuration() float64 {
	return s.TrimEnd - s.TrimStart
}

// ClampTrim bounds the trim window to [0, duration] once the input duration is known.
// A non-positive or unknown duration leaves the settings untouched.
func (s Settings) ClampTrim(duration float64) Settings {
	if !s.HasTrim() || duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return s
	}
	s.TrimStart = math.Min(math.Max(0, s.TrimStart), duration)
	s.TrimEnd = math.Min(math.Max(s.TrimStart, s.TrimEnd), duration)
	return s
}
