// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package media holds container formats, media types and file naming helpers
// shared by the command builder, the job controller and the HTTP layer.
package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a target container format.
type Format string

const (
	FormatMP4     Format = "mp4"
	FormatMOV     Format = "mov"
	FormatMKV     Format = "mkv"
	FormatAVI     Format = "avi"
	FormatWebM    Format = "webm"
	FormatM4V     Format = "m4v"
	FormatThreeGP Format = "3gp"
	FormatWMV     Format = "wmv"
)

var formats = []Format{
	FormatMP4,
	FormatMOV,
	FormatMKV,
	FormatAVI,
	FormatWebM,
	FormatM4V,
	FormatThreeGP,
	FormatWMV,
}

// Formats returns every supported output format in presentation order.
func Formats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

// ParseFormat resolves a case-insensitive format name, with or without a leading dot.
func ParseFormat(s string) (Format, error) {
	key := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	for _, f := range formats {
		if f == key {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	_, err := ParseFormat(string(f))
	return err == nil
}

// MediaType returns the media type attached to output artifacts of this format.
func (f Format) MediaType() string {
	return "video/" + string(f)
}

// acceptedInputs maps upload content types to the file extensions accepted for them.
var acceptedInputs = map[string][]string{
	"video/mp4":        {".mp4", ".m4v"},
	"video/quicktime":  {".mov"},
	"video/x-matroska": {".mkv"},
	"video/avi":        {".avi"},
	"video/webm":       {".webm"},
	"video/3gpp":       {".3gp"},
	"video/x-ms-wmv":   {".wmv"},
}

// IsAcceptedInput reports whether an uploaded file is a video the service takes.
// A known content type wins; otherwise any "video/*" type or a known extension is accepted.
func IsAcceptedInput(contentType, fileName string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if _, ok := acceptedInputs[ct]; ok {
		return true
	}
	if strings.HasPrefix(ct, "video/") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return false
	}
	for _, exts := range acceptedInputs {
		for _, e := range exts {
			if e == ext {
				return true
			}
		}
	}
	return false
}
