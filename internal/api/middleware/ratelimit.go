// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ManuGH/condense/internal/api/problem"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests allowed in the window.
	RequestLimit int
	// WindowSize is the time window for rate limiting.
	WindowSize time.Duration
	// KeyFunc extracts the rate limit key. Nil limits per client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit limits requests with a sliding window counter.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(cfg.WindowSize.Seconds())))
			problem.Write(w, r, http.StatusTooManyRequests, "system/rate_limited", "RATE_LIMITED",
				"too many requests, try again later")
		}),
	)
}

// DynamicRateLimit is a per-minute limiter whose limit can change at runtime.
// A limit of zero or less disables limiting.
type DynamicRateLimit struct {
	next    http.Handler
	current atomic.Pointer[http.Handler]
}

// NewDynamicRateLimit wraps next with an rpm requests-per-minute limit.
func NewDynamicRateLimit(next http.Handler, rpm int) *DynamicRateLimit {
	d := &DynamicRateLimit{next: next}
	d.SetLimit(rpm)
	return d
}

// SetLimit swaps the limiter. Counters restart from zero.
func (d *DynamicRateLimit) SetLimit(rpm int) {
	h := d.next
	if rpm > 0 {
		h = RateLimit(RateLimitConfig{RequestLimit: rpm, WindowSize: time.Minute})(d.next)
	}
	d.current.Store(&h)
}

func (d *DynamicRateLimit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	(*d.current.Load()).ServeHTTP(w, r)
}
