package auth

import (
	"encoding/base64"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"valid", "Bearer secret-123", "secret-123", nil},
		{"case insensitive scheme", "bearer secret-123", "secret-123", nil},
		{"missing header", "", "", ErrNoCredentials},
		{"basic scheme", "Basic dXNlcjpwYXNz", "", ErrNoCredentials},
		{"no token", "Bearer ", "", ErrNoCredentials},
		{"bare token without scheme", "secret-123", "", ErrNoCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractBearer(r)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBearerVerifier(t *testing.T) {
	v := NewBearerVerifier("correct-token")

	if err := v.Verify("correct-token"); err != nil {
		t.Errorf("Verify(correct) error: %v", err)
	}
	if err := v.Verify("wrong-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(wrong) error = %v, want ErrInvalidToken", err)
	}
	if err := v.Verify(""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(empty) error = %v, want ErrInvalidToken", err)
	}
}

func basicHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestBasicVerifier(t *testing.T) {
	v := NewBasicVerifier("admin", "s3cret")

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"correct credentials", basicHeader("admin", "s3cret"), true},
		{"wrong password", basicHeader("admin", "nope"), false},
		{"wrong username", basicHeader("root", "s3cret"), false},
		{"empty header", "", false},
		{"bearer scheme", "Bearer some-token", false},
		{"not base64", "Basic %%%%", false},
		{"no colon in payload", "Basic " + base64.StdEncoding.EncodeToString([]byte("admincreds")), false},
		{"password containing colon", basicHeader("admin", "s3:cret"), false},
		{"lowercase scheme", strings.Replace(basicHeader("admin", "s3cret"), "Basic", "basic", 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.VerifyHeader(tt.header); got != tt.want {
				t.Errorf("VerifyHeader() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBasicVerifier_ColonInPassword(t *testing.T) {
	// Only the first colon separates user from password, so configured
	// passwords containing colons still authenticate.
	v := NewBasicVerifier("admin", "pa:ss")
	if !v.VerifyHeader(basicHeader("admin", "pa:ss")) {
		t.Error("password with colon should verify against matching config")
	}
}

func TestRedactToken(t *testing.T) {
	redacted := RedactToken("super-secret-token")
	if strings.Contains(redacted, "super-secret-token") {
		t.Error("redacted form must not contain the raw token")
	}
	if !strings.HasPrefix(redacted, "sha256:") || len(redacted) != len("sha256:")+8 {
		t.Errorf("unexpected redacted form %q", redacted)
	}
	if RedactToken("super-secret-token") != redacted {
		t.Error("redaction should be stable for the same input")
	}
}
