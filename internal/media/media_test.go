// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" .MKV ")
	require.NoError(t, err)
	assert.Equal(t, FormatMKV, f)

	f, err = ParseFormat("3gp")
	require.NoError(t, err)
	assert.Equal(t, FormatThreeGP, f)

	_, err = ParseFormat("flv")
	assert.Error(t, err)
}

func TestFormats_ReturnsCopy(t *testing.T) {
	all := Formats()
	require.Len(t, all, 8)
	all[0] = "bogus"
	assert.Equal(t, FormatMP4, Formats()[0])
}

func TestFormat_MediaType(t *testing.T) {
	assert.Equal(t, "video/mp4", FormatMP4.MediaType())
	assert.Equal(t, "video/webm", FormatWebM.MediaType())
	assert.True(t, FormatWMV.Valid())
	assert.False(t, Format("gif").Valid())
}

func TestIsAcceptedInput(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		fileName    string
		want        bool
	}{
		{"known type", "video/quicktime", "clip.mov", true},
		{"type with params", "video/mp4; codecs=avc1", "clip.mp4", true},
		{"generic video", "video/x-flv", "clip.flv", true},
		{"octet stream with known ext", "application/octet-stream", "clip.MKV", true},
		{"image", "image/png", "pic.png", false},
		{"no type no ext", "", "README", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAcceptedInput(tt.contentType, tt.fileName))
		})
	}
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, "mp4", FileExtension("clip.MP4"))
	assert.Equal(t, "gz", FileExtension("archive.tar.gz"))
	assert.Equal(t, "", FileExtension("noext"))
	assert.Equal(t, "", FileExtension("trailing."))
	assert.Equal(t, "", FileExtension("dir.d/noext"))
}

func TestStripExtension(t *testing.T) {
	assert.Equal(t, "clip", StripExtension("clip.mov"))
	assert.Equal(t, "my.holiday", StripExtension("my.holiday.mp4"))
	assert.Equal(t, "noext", StripExtension("noext"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "clip.mov", SanitizeName("../../etc/clip.mov"))
	assert.Equal(t, "clip.mov", SanitizeName(`C:\Users\me\clip.mov`))
	assert.Equal(t, "input", SanitizeName(".."))
	assert.Equal(t, "input", SanitizeName("   "))
	// Decomposed "é" (e + combining acute) is composed to a single rune.
	assert.Equal(t, "caf\u00e9.mp4", SanitizeName("cafe\u0301.mp4"))
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00", FormatClock(math.NaN()))
	assert.Equal(t, "00:00", FormatClock(-5))
	assert.Equal(t, "01:05", FormatClock(65))
	assert.Equal(t, "01:01:01", FormatClock(3661))
	assert.Equal(t, "00:03", FormatClock(2.6))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0sec", FormatElapsed(0))
	assert.Equal(t, "45sec", FormatElapsed(45))
	assert.Equal(t, "2min", FormatElapsed(120))
	assert.Equal(t, "1hr 0min 5sec", FormatElapsed(3605))
	assert.Equal(t, "1hr 1min", FormatElapsed(3660))
}
