// Package ratelimit implements the process-scoped sliding-window limiter
// that gates outbound LLM calls. It is constructed once at startup and
// injected explicitly so the extraction core stays testable in isolation.
package ratelimit

import (
	"sync"
	"time"

	"github.com/setflow/callsheet-cli/internal/resilience"
)

// Window is a sliding-window call limiter keyed by caller identity.
type Window struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	calls    map[string][]time.Time
	now      func() time.Time
}

// New creates a limiter allowing maxCalls per caller within window.
// A maxCalls of zero or less disables limiting.
func New(maxCalls int, window time.Duration) *Window {
	return &Window{
		maxCalls: maxCalls,
		window:   window,
		calls:    make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow records one call for caller, or returns a RateLimitError carrying
// the time until the oldest in-window call expires.
func (w *Window) Allow(caller string) error {
	if w.maxCalls <= 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)

	recent := w.calls[caller][:0]
	for _, t := range w.calls[caller] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= w.maxCalls {
		retryAfter := recent[0].Sub(cutoff)
		w.calls[caller] = recent
		return &resilience.RateLimitError{RetryAfter: retryAfter}
	}

	w.calls[caller] = append(recent, now)
	return nil
}
