// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// FileExtension returns the lower-cased extension of name without the dot,
// or "" when there is none.
func FileExtension(name string) string {
	base := filepath.Base(name)
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// StripExtension removes the last extension from name.
func StripExtension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// SanitizeName reduces an uploaded file name to a safe base name.
// Directory components are dropped and the result is NFC normalized so the
// same visual name always maps to the same bytes.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '/' {
			return -1
		}
		return r
	}, name)
	switch name {
	case "", ".", "..":
		return "input"
	}
	return name
}
