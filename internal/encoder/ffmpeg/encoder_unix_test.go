// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build unix

package ffmpeg

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/condense/internal/encoder"
)

// fakeFFmpeg is a shell stand-in that understands -version and writes its last
// argument as the output file. Without an output it only prints the input banner.
// FAKE_MODE selects failure behaviours.
const fakeFFmpeg = `#!/bin/sh
prev=""
for a; do
  if [ "$a" = "-version" ]; then echo "ffmpeg version 6.1-fake"; exit 0; fi
  before="$prev"
  prev="$a"
  out="$a"
done
echo "Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'in.mp4':" >&2
if [ "$FAKE_MODE" = "live" ]; then
  echo "  Duration: N/A, start: 0.000000, bitrate: N/A" >&2
else
  echo "  Duration: 00:00:10.00, start: 0.000000, bitrate: 100 kb/s" >&2
fi
if [ "$before" = "-i" ]; then
  echo "At least one output file must be specified" >&2
  exit 1
fi
case "$FAKE_MODE" in
  fail) echo "in.mp4: Invalid data found when processing input" >&2; exit 1 ;;
  hang) trap '' TERM; while true; do sleep 1; done ;;
esac
echo "out_time_us=5000000"
echo "progress=continue"
cat in.mp4 > "$out"
echo "out_time_us=10000000"
echo "progress=end"
exit 0
`

func newLoaded(t *testing.T) *Encoder {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte(fakeFFmpeg), 0o755))

	e := New(200 * time.Millisecond)
	require.NoError(t, e.Load(context.Background(), encoder.Resources{Binary: bin, WorkRoot: t.TempDir()}))
	t.Cleanup(func() { _ = e.Terminate() })
	return e
}

type eventLog struct {
	mu     sync.Mutex
	events []encoder.Event
}

func (l *eventLog) add(ev encoder.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) progress() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []float64
	for _, ev := range l.events {
		if ev.Kind == encoder.EventProgress {
			out = append(out, ev.Ratio)
		}
	}
	return out
}

func TestEncoder_LoadErrors(t *testing.T) {
	e := New(0)
	err := e.Load(context.Background(), encoder.Resources{Binary: "definitely-not-ffmpeg-xyz"})
	require.Error(t, err)

	_, err = e.Exec(context.Background(), nil, nil)
	assert.ErrorIs(t, err, encoder.ErrNotReady)
}

func TestEncoder_RoundTrip(t *testing.T) {
	e := newLoaded(t)
	ctx := context.Background()
	assert.Equal(t, "ffmpeg version 6.1-fake", e.Version())

	require.NoError(t, e.WriteInput(ctx, "in.mp4", strings.NewReader("payload")))

	var got eventLog
	// -t fixes the total up front; the stderr banner races the progress stream.
	code, err := e.Exec(ctx, []string{"-i", "in.mp4", "-t", "10", "out.mp4"}, got.add)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, []float64{0.5, 1, 1}, got.progress())

	data, err := e.ReadOutput(ctx, "out.mp4")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, e.Remove("out.mp4"))
	require.NoError(t, e.Remove("out.mp4"), "removing a missing file is not an error")
	_, err = e.ReadOutput(ctx, "out.mp4")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestEncoder_NamesConfinedToScratchDir(t *testing.T) {
	e := newLoaded(t)
	require.NoError(t, e.WriteInput(context.Background(), "../../escape.mp4", strings.NewReader("x")))
	_, err := os.Stat(filepath.Join(e.Dir(), "escape.mp4"))
	assert.NoError(t, err)
}

func TestEncoder_NonZeroExit(t *testing.T) {
	t.Setenv("FAKE_MODE", "fail")
	e := newLoaded(t)

	var got eventLog
	code, err := e.Exec(context.Background(), []string{"-i", "in.mp4", "out.mp4"}, got.add)
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	var logs []string
	for _, ev := range got.events {
		if ev.Kind == encoder.EventLog {
			logs = append(logs, ev.Message)
		}
	}
	assert.Contains(t, logs, "in.mp4: Invalid data found when processing input")
}

func TestEncoder_TerminateInterruptsExec(t *testing.T) {
	t.Setenv("FAKE_MODE", "hang")
	e := newLoaded(t)
	dir := e.Dir()

	errCh := make(chan error, 1)
	go func() {
		_, err := e.Exec(context.Background(), []string{"-i", "in.mp4", "out.mp4"}, nil)
		errCh <- err
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, e.Terminate())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, encoder.ErrTerminated)
	case <-time.After(5 * time.Second):
		t.Fatal("Exec did not return after Terminate")
	}

	_, err := os.Stat(dir)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "scratch dir removed")

	assert.ErrorIs(t, e.WriteInput(context.Background(), "a", strings.NewReader("")), encoder.ErrTerminated)
	assert.ErrorIs(t, e.Load(context.Background(), encoder.Resources{}), encoder.ErrTerminated)
	assert.NoError(t, e.Terminate(), "Terminate is idempotent")
}

func TestEncoder_ContextCancel(t *testing.T) {
	t.Setenv("FAKE_MODE", "hang")
	e := newLoaded(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := e.Exec(ctx, []string{"-i", "in.mp4", "out.mp4"}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEncoder_InputDuration(t *testing.T) {
	e := newLoaded(t)
	ctx := context.Background()
	require.NoError(t, e.WriteInput(ctx, "in.mp4", strings.NewReader("payload")))

	d, err := e.InputDuration(ctx, "in.mp4")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)

	data, err := os.ReadFile(filepath.Join(e.Dir(), "in.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data), "reading the duration leaves the input intact")
}

func TestEncoder_InputDurationUnknown(t *testing.T) {
	t.Setenv("FAKE_MODE", "live")
	e := newLoaded(t)
	require.NoError(t, e.WriteInput(context.Background(), "in.mp4", strings.NewReader("x")))

	_, err := e.InputDuration(context.Background(), "in.mp4")
	assert.ErrorIs(t, err, encoder.ErrDurationUnknown)

	require.NoError(t, e.Terminate())
	_, err = e.InputDuration(context.Background(), "in.mp4")
	assert.ErrorIs(t, err, encoder.ErrTerminated)
}
