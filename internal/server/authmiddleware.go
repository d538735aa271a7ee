package server

import (
	"context"
	"net/http"

	"github.com/unsubtrack/tracker/internal/auth"
	"github.com/unsubtrack/tracker/internal/metrics"
)

type tokenKey struct{}

// BearerAuthMiddleware protects the API surface with the shared bearer
// secret. The validated token is exposed to handlers via context for
// non-logging purposes; nothing downstream may write the raw value to a log.
func BearerAuthMiddleware(verifier *auth.BearerVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractBearer(r)
			if err != nil {
				metrics.AuthRejections.WithLabelValues("api").Inc()
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
				return
			}
			if err := verifier.Verify(token); err != nil {
				metrics.AuthRejections.WithLabelValues("api").Inc()
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid or expired token"})
				return
			}

			ctx := context.WithValue(r.Context(), tokenKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetToken returns the bearer token validated for this request, or "".
func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(tokenKey{}).(string); ok {
		return token
	}
	return ""
}

const loginRequiredPage = `<!DOCTYPE html>
<html>
<head><title>Login Required</title></head>
<body>
<h1>Authentication Required</h1>
<p>Please provide valid credentials to access the web interface.</p>
</body>
</html>
`

// BasicAuthMiddleware protects the web surface. Every failure mode answers
// with the same 401 page and a Basic challenge so the response does not
// reveal whether the header was malformed or the password wrong.
func BasicAuthMiddleware(verifier *auth.BasicVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !verifier.VerifyHeader(r.Header.Get("Authorization")) {
				metrics.AuthRejections.WithLabelValues("web").Inc()
				w.Header().Set("WWW-Authenticate", `Basic realm="Web UI"`)
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(loginRequiredPage))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
