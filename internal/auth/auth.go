// Package auth verifies the two static credential schemes: a shared bearer
// token for the API surface and a username/password pair for the web UI.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// ErrNoCredentials is returned when the Authorization header is missing or
// does not carry the expected scheme.
var ErrNoCredentials = errors.New("no credentials supplied")

// ErrInvalidToken is returned when a bearer token is present but wrong.
var ErrInvalidToken = errors.New("invalid token")

// BearerVerifier checks bearer tokens against a single shared secret.
type BearerVerifier struct {
	token string
}

func NewBearerVerifier(token string) *BearerVerifier {
	return &BearerVerifier{token: token}
}

// ExtractBearer pulls the bearer token from a request's Authorization header.
// A missing header, a non-bearer scheme, or an empty token all yield
// ErrNoCredentials so the caller answers "not authenticated" uniformly.
func ExtractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoCredentials
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", ErrNoCredentials
	}
	return parts[1], nil
}

// Verify compares the presented token against the configured secret in
// constant time.
func (v *BearerVerifier) Verify(token string) error {
	if subtle.ConstantTimeCompare([]byte(token), []byte(v.token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// BasicVerifier checks a static username/password pair.
type BasicVerifier struct {
	username string
	password string
}

func NewBasicVerifier(username, password string) *BasicVerifier {
	return &BasicVerifier{username: username, password: password}
}

// VerifyHeader validates a raw Authorization header value for the Basic
// scheme. Every failure mode (missing header, wrong scheme, malformed
// base64, missing colon, wrong credentials) reports false; callers must not
// distinguish them in the response, to avoid leaking which part was wrong.
func (v *BasicVerifier) VerifyHeader(header string) bool {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "basic") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(v.password)) == 1
	return userOK && passOK
}

// RedactToken produces a stable, loggable stand-in for a credential: the
// first 8 hex characters of its SHA-256. Raw token values must never reach a
// log payload; diagnostics that need the rate-limit identifier use this.
func RedactToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])[:8]
}
