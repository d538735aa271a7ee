package server

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/unsubtrack/tracker/internal/auth"
	"github.com/unsubtrack/tracker/internal/config"
	"github.com/unsubtrack/tracker/internal/eventlog"
	"github.com/unsubtrack/tracker/internal/metrics"
	"github.com/unsubtrack/tracker/internal/ratelimit"
)

// exemptPaths are never rate limited: documentation/schema endpoints plus
// the scrape and liveness probes.
var exemptPaths = []string{"/docs", "/openapi.json", "/metrics", "/api/v1/health"}

// RateLimitMiddleware applies the sliding-window limiter ahead of
// authentication. Requests carrying a bearer token are keyed by the raw
// token under the authenticated quota; everything else is keyed by client
// address under the anonymous quota.
func RateLimitMiddleware(limiter *ratelimit.Limiter, cfg config.RateLimitConfig, recorder *eventlog.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			var identifier, kind string
			var limit int
			if token, err := auth.ExtractBearer(r); err == nil {
				identifier = token
				limit = cfg.AuthenticatedLimit
				kind = "authenticated"
			} else {
				identifier = clientHost(r)
				limit = cfg.AnonymousLimit
				kind = "anonymous"
			}

			retryAfter, limited := limiter.Admit(identifier, limit, cfg.Window())
			if !limited {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RateLimitRejected.WithLabelValues(kind).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"detail": fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter),
			})

			// Recorded after the response is written so the rejection can
			// never block on, or fail because of, log I/O. The identifier is
			// redacted: for authenticated traffic it is the raw token.
			if recorder != nil {
				recorder.Record(r.Context(), eventlog.Event{
					Source:  "rate_limiter",
					Level:   "WARNING",
					Message: "Rate limit exceeded",
					Details: map[string]any{
						"identifier": redactIdentifier(identifier, kind),
						"path":       r.URL.Path,
					},
				})
			}
		})
	}
}

func isExempt(path string) bool {
	for _, p := range exemptPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// clientHost strips the port from RemoteAddr so a client keeps one identity
// across connections.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func redactIdentifier(identifier, kind string) string {
	if kind == "authenticated" {
		return auth.RedactToken(identifier)
	}
	return identifier
}
