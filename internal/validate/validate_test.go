// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package validate

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Accumulates(t *testing.T) {
	v := New()
	v.Range("Workers", 0, 1, 8)
	v.NotEmpty("Binary", "  ")
	v.OneOf("Exporter", "zipkin", []string{"grpc", "http"})
	v.Positive("MaxUpload", 0)
	v.NonNegativeDuration("Stall", -time.Second)
	v.RangeFloat("Sampling", math.NaN(), 0, 1)

	require.False(t, v.IsValid())
	err := v.Err()
	require.Error(t, err)
	assert.Equal(t, []string{"Workers", "Binary", "Exporter", "MaxUpload", "Stall", "Sampling"}, Fields(err))
	assert.Contains(t, err.Error(), "validation failed for Workers")
}

func TestValidator_ValidIsNil(t *testing.T) {
	v := New()
	v.Range("Workers", 4, 1, 8)
	v.OneOf("Exporter", "grpc", []string{"grpc", "http"})
	v.ListenAddr("Listen", ":8080")
	v.LogLevel("Level", "DEBUG")
	assert.True(t, v.IsValid())
	assert.NoError(t, v.Err())
	assert.Nil(t, Fields(nil))
}

func TestValidator_ListenAddr(t *testing.T) {
	for _, addr := range []string{"8080", "host:http", ":70000"} {
		v := New()
		v.ListenAddr("Listen", addr)
		assert.False(t, v.IsValid(), addr)
	}
	v := New()
	v.ListenAddr("Listen", "127.0.0.1:0")
	assert.True(t, v.IsValid())
}

func TestValidator_Directory(t *testing.T) {
	root := t.TempDir()

	v := New()
	v.Directory("Work", filepath.Join(root, "created"), false)
	assert.True(t, v.IsValid())
	assert.DirExists(t, filepath.Join(root, "created"))

	v = New()
	v.Directory("Work", filepath.Join(root, "missing"), true)
	assert.False(t, v.IsValid())

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	v = New()
	v.Directory("Work", file, false)
	assert.False(t, v.IsValid())

	v = New()
	v.Directory("Work", "a/../../etc", false)
	assert.False(t, v.IsValid())
}

func TestParseLogLevel(t *testing.T) {
	l, err := ParseLogLevel(" Warn ")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, l)

	_, err = ParseLogLevel("verbose")
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}
