package streamauth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/MrEthical07/streamauth/security"
	"github.com/MrEthical07/streamauth/storage"
	"github.com/MrEthical07/streamauth/token"
)

func TestStatusCodeAndErrorCode(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{nil, http.StatusOK, ""},
		{&RateLimitError{RetryAfter: time.Minute}, http.StatusTooManyRequests, "rate_limited"},
		{fmt.Errorf("%w: username too short", ErrValidation), http.StatusBadRequest, "invalid_request"},
		{ErrInsufficientPermissions, http.StatusForbidden, "forbidden"},
		{ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
		{ErrTokenInvalid, http.StatusUnauthorized, "token_invalid"},
		{ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
		{ErrStorage, http.StatusServiceUnavailable, "unavailable"},
		{ErrManagerNotReady, http.StatusServiceUnavailable, "unavailable"},
		{errors.New("anything else"), http.StatusUnauthorized, "unauthorized"},
	}
	for _, tc := range cases {
		if got := StatusCode(tc.err); got != tc.status {
			t.Fatalf("StatusCode(%v) = %d, want %d", tc.err, got, tc.status)
		}
		if got := ErrorCode(tc.err); got != tc.code {
			t.Fatalf("ErrorCode(%v) = %q, want %q", tc.err, got, tc.code)
		}
	}
}

func TestTokenErrorMapping(t *testing.T) {
	if err := tokenError(token.ErrExpired); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired mapped to %v", err)
	}
	if err := tokenError(fmt.Errorf("%w: bad signature", token.ErrInvalid)); !errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrStorage) {
		t.Fatalf("invalid mapped to %v", err)
	}
	outage := fmt.Errorf("%w: %w", token.ErrRevoked, storage.ErrUnavailable)
	if err := tokenError(outage); !errors.Is(err, ErrTokenInvalid) || !errors.Is(err, ErrStorage) {
		t.Fatalf("outage mapped to %v", err)
	}
	if tokenError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestValidationErrorKeepsFieldMessage(t *testing.T) {
	_, verr := security.ValidateCredentials("a", "password")
	err := validationError(verr)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err.Error() == ErrValidation.Error() {
		t.Fatal("expected the field message to be kept")
	}
}
