// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationBanner = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// progressTracker turns ffmpeg "-progress" key=value lines into completion ratios.
// It is not safe for concurrent use; the adapter serialises access.
type progressTracker struct {
	total   time.Duration
	fixed   bool // total came from -t and must not be overridden by the banner
	lastOut time.Duration
	done    bool
}

func newProgressTracker(args []string) *progressTracker {
	p := &progressTracker{}
	if d, ok := durationFromArgs(args); ok {
		p.total, p.fixed = d, true
	}
	return p
}

// durationFromArgs returns the value of the last "-t" flag.
func durationFromArgs(args []string) (time.Duration, bool) {
	var (
		d  time.Duration
		ok bool
	)
	for i := 0; i+1 < len(args); i++ {
		if args[i] != "-t" {
			continue
		}
		if v, err := parseSeconds(args[i+1]); err == nil && v > 0 {
			d, ok = v, true
		}
	}
	return d, ok
}

// ObserveLog inspects a stderr line for the input duration banner.
// The first banner wins; later ones describe secondary inputs.
func (p *progressTracker) ObserveLog(line string) {
	if p.fixed || p.total > 0 {
		return
	}
	if d, ok := parseDurationBanner(line); ok {
		p.total = d
	}
}

// parseDurationBanner extracts the input duration from a "Duration: HH:MM:SS.ss" line.
// "Duration: N/A" (live or broken inputs) does not match.
func parseDurationBanner(line string) (time.Duration, bool) {
	m := durationBanner.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	secs, _ := strconv.ParseFloat(m[3], 64)
	return time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(secs*float64(time.Second)), true
}

// ParseLine processes one "-progress" line and reports the new ratio, if any.
func (p *progressTracker) ParseLine(line string) (float64, bool) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)

	switch key {
	// out_time_ms carries microseconds as well, for historical reasons.
	case "out_time_us", "out_time_ms":
		us, err := strconv.ParseInt(val, 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		return p.advance(time.Duration(us) * time.Microsecond)
	case "out_time":
		d, err := parseClock(val)
		if err != nil {
			return 0, false
		}
		return p.advance(d)
	case "progress":
		if val == "end" && !p.done {
			p.done = true
			return 1, true
		}
	}
	return 0, false
}

func (p *progressTracker) advance(out time.Duration) (float64, bool) {
	if out <= p.lastOut {
		return 0, false
	}
	p.lastOut = out
	if p.done || p.total <= 0 {
		return 0, false
	}
	return math.Min(1, float64(out)/float64(p.total)), true
}

func parseSeconds(s string) (time.Duration, error) {
	if strings.Contains(s, ":") {
		return parseClock(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(v * float64(time.Second)), nil
}

// parseClock parses "HH:MM:SS.micro" as emitted by ffmpeg.
func parseClock(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	parts := strings.Split(s, ":")
	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, err
		}
		total = total*60 + v
	}
	d := time.Duration(total * float64(time.Second))
	if neg {
		d = -d
	}
	return d, nil
}
