// Package ratelimit implements an in-memory sliding-window rate limiter.
// State is a single map of identifier -> admitted request timestamps guarded
// by one mutex; no I/O happens while the lock is held.
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/unsubtrack/tracker/internal/eventlog"
	"github.com/unsubtrack/tracker/internal/metrics"
)

// Limiter tracks request timestamps per identifier. The identifier is a raw
// bearer token for authenticated traffic or a client address otherwise; it is
// used only as a map key and must be redacted before appearing in any log.
type Limiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time

	now func() time.Time
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Admit reports whether a request from identifier may proceed given the limit
// and window. When admitted it records the request timestamp and returns
// (0, false). When the identifier is at capacity it returns the number of
// whole seconds until the oldest in-window request expires and true; the
// rejected request is not counted against the window, so repeated rejections
// do not extend it.
func (l *Limiter) Admit(identifier string, limit int, window time.Duration) (retryAfter int, limited bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamps := l.requests[identifier]

	// Slide the window: keep only timestamps still inside it.
	relevant := timestamps[:0:0]
	for _, t := range timestamps {
		if now.Sub(t) <= window {
			relevant = append(relevant, t)
		}
	}

	if limit <= 0 || len(relevant) >= limit {
		// Leave the stored sequence untouched: a rejected request does not
		// count against the window, and repeated rejections must not mutate
		// state. Expired entries are reclaimed by Sweep.
		if len(relevant) == 0 {
			// A non-positive limit admits nothing, so there is no oldest
			// timestamp to expire; the soonest sensible retry is one window.
			return int(math.Ceil(window.Seconds())), true
		}
		oldest := relevant[0]
		retry := int(math.Ceil((window - now.Sub(oldest)).Seconds()))
		return retry, true
	}

	l.requests[identifier] = append(relevant, now)
	return 0, false
}

// Sweep re-filters every identifier against the window and removes any whose
// timestamp sequence becomes empty, bounding memory growth from one-off
// clients. It holds the lock only for the filter and delete pass.
func (l *Limiter) Sweep(window time.Duration) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for identifier, timestamps := range l.requests {
		relevant := timestamps[:0:0]
		for _, t := range timestamps {
			if now.Sub(t) <= window {
				relevant = append(relevant, t)
			}
		}
		if len(relevant) == 0 {
			delete(l.requests, identifier)
		} else {
			l.requests[identifier] = relevant
		}
	}
	return len(l.requests)
}

// Len returns the number of identifiers currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// Run sweeps on a fixed interval until the context is cancelled. Each pass
// records an INFO event; recording happens outside the limiter lock.
func (l *Limiter) Run(ctx context.Context, interval, window time.Duration, recorder *eventlog.Recorder, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			remaining := l.Sweep(window)
			metrics.RateLimitIdentifiers.Set(float64(remaining))
			logger.Debug("rate limiter sweep completed", slog.Int("identifiers", remaining))
			if recorder != nil {
				recorder.Record(ctx, eventlog.Event{
					Source:  "rate_limiter",
					Level:   "INFO",
					Message: "Cleanup task completed.",
					Details: map[string]any{"identifiers": remaining},
				})
			}
		}
	}
}
