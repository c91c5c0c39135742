// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package settings

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/condense/internal/media"
)

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, QualityHigh, s.Quality)
	assert.Equal(t, media.FormatMP4, s.Format)
	assert.Equal(t, PresetNone, s.Preset)
	assert.False(t, s.RemoveAudio)
	assert.False(t, s.HasTrim())
}

func TestTogglePreset_MutualExclusion(t *testing.T) {
	s := Default()

	s = s.TogglePreset(PresetTwitter)
	assert.Equal(t, PresetTwitter, s.Preset)

	s = s.TogglePreset(PresetWhatsAppStatus)
	assert.Equal(t, PresetWhatsAppStatus, s.Preset, "selecting one preset clears the other")

	s = s.TogglePreset(PresetWhatsAppStatus)
	assert.Equal(t, PresetNone, s.Preset, "toggling the active preset clears it")

	s = s.TogglePreset(PresetNone)
	assert.Equal(t, PresetNone, s.Preset)
}

func TestEffectiveFormat(t *testing.T) {
	s := Default()
	s.Format = media.FormatMKV
	assert.Equal(t, media.FormatMKV, s.EffectiveFormat())

	s.Preset = PresetTwitter
	assert.Equal(t, media.FormatMP4, s.EffectiveFormat(), "presets always target mp4")

	assert.Equal(t, media.FormatMP4, Settings{}.EffectiveFormat())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		start   float64
		end     float64
		wantErr bool
	}{
		{"no trim", 0, 0, false},
		{"window", 5, 20, false},
		{"zero length window", 7, 7, false},
		{"end before start", 10, 5, true},
		{"negative start", -1, 5, true},
		{"negative both", -5, -1, true},
		{"nan", math.NaN(), 3, true},
		{"infinite end", 0, math.Inf(1), true},
		{"infinite start", math.Inf(1), math.Inf(1), true},
		{"negative infinite start", math.Inf(-1), 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			s.TrimStart, s.TrimEnd = tt.start, tt.end
			err := Validate(s)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var rangeErr *InvalidRangeError
			require.True(t, errors.As(err, &rangeErr), "want *InvalidRangeError, got %v", err)
			assert.NotEmpty(t, rangeErr.Reason)
		})
	}
}

func TestClampTrim(t *testing.T) {
	s := Default()
	s.TrimStart, s.TrimEnd = 5, 90

	clamped := s.ClampTrim(60)
	assert.Equal(t, 5.0, clamped.TrimStart)
	assert.Equal(t, 60.0, clamped.TrimEnd)

	s.TrimStart, s.TrimEnd = 70, 90
	clamped = s.ClampTrim(60)
	assert.Equal(t, 60.0, clamped.TrimStart)
	assert.Equal(t, 60.0, clamped.TrimEnd)

	// Unknown duration leaves the window alone.
	assert.Equal(t, s, s.ClampTrim(0))

	// No trim stays no trim.
	assert.Equal(t, Default(), Default().ClampTrim(60))
}

func TestParseQuality(t *testing.T) {
	q, err := ParseQuality(" Medium ")
	require.NoError(t, err)
	assert.Equal(t, QualityMedium, q)

	_, err = ParseQuality("ultra")
	assert.Error(t, err)
}

func TestParsePreset(t *testing.T) {
	for in, want := range map[string]Preset{
		"":                PresetNone,
		"none":            PresetNone,
		"Twitter":         PresetTwitter,
		"whatsapp-status": PresetWhatsAppStatus,
		"whatsapp":        PresetWhatsAppStatus,
	} {
		got, err := ParsePreset(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePreset("tiktok")
	assert.Error(t, err)
}
