// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment key.
const EnvPrefix = "CONDENSE_"

// env reads typed values from a lookup function and logs their source.
// Malformed values keep the previous value and are reported.
type env struct {
	lookup func(string) (string, bool)
	logger zerolog.Logger
	errs   []string
}

func (e *env) raw(key string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	e.logger.Debug().
		Str("key", EnvPrefix+key).
		Str("source", "environment").
		Msg("using environment variable")
	return strings.TrimSpace(v), true
}

func (e *env) invalid(key, value string, err error) {
	e.errs = append(e.errs, EnvPrefix+key+"="+strconv.Quote(value)+": "+err.Error())
}

func (e *env) String(key string, dst *string) {
	if v, ok := e.raw(key); ok {
		*dst = v
	}
}

func (e *env) Bool(key string, dst *bool) {
	v, ok := e.raw(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.invalid(key, v, err)
		return
	}
	*dst = b
}

func (e *env) Int(key string, dst *int) {
	v, ok := e.raw(key)
	if !ok {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.invalid(key, v, err)
		return
	}
	*dst = i
}

func (e *env) Int64(key string, dst *int64) {
	v, ok := e.raw(key)
	if !ok {
		return
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.invalid(key, v, err)
		return
	}
	*dst = i
}

func (e *env) Float(key string, dst *float64) {
	v, ok := e.raw(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.invalid(key, v, err)
		return
	}
	*dst = f
}

func (e *env) Duration(key string, dst *time.Duration) {
	v, ok := e.raw(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.invalid(key, v, err)
		return
	}
	*dst = d
}

// Strings reads a comma-separated list.
func (e *env) Strings(key string, dst *[]string) {
	v, ok := e.raw(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}
