// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHolder(t *testing.T, body string) (*Holder, string) {
	t.Helper()
	path := writeConfig(t, body)
	loader := NewLoader(path, "").WithEnv(envMap(map[string]string{"CONDENSE_DATA_DIR": t.TempDir()}))
	cfg, err := loader.Load()
	require.NoError(t, err)
	return NewHolder(cfg, loader), path
}

func TestHolder_Reload(t *testing.T) {
	h, path := newHolder(t, "log:\n  level: info\n")
	ch := make(chan Config, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, "debug", h.Get().Log.Level)

	select {
	case cfg := <-ch:
		assert.Equal(t, "debug", cfg.Log.Level)
	default:
		t.Fatal("listener not notified")
	}
}

func TestHolder_ReloadFailureKeepsOld(t *testing.T) {
	h, path := newHolder(t, "log:\n  level: info\n")

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, "info", h.Get().Log.Level)
}

func TestHolder_NonBlockingListener(t *testing.T) {
	h, _ := newHolder(t, "log:\n  level: info\n")
	full := make(chan Config)
	h.RegisterListener(full)
	require.NoError(t, h.Reload(context.Background()), "a full listener does not block reloads")
}

func TestHolder_WatchPicksUpChanges(t *testing.T) {
	h, path := newHolder(t, "server:\n  rateLimitRPM: 10\n")
	ch := make(chan Config, 4)
	h.RegisterListener(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("server:\n  rateLimitRPM: 99\n"), 0o600))

	select {
	case cfg := <-ch:
		assert.Equal(t, 99, cfg.Server.RateLimitRPM)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestHolder_WatchWithoutFile(t *testing.T) {
	loader := NewLoader("", "").WithEnv(envMap(map[string]string{"CONDENSE_DATA_DIR": t.TempDir()}))
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.NoError(t, NewHolder(cfg, loader).Watch(context.Background()))
}
