package streamauth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/streamauth/security"
	"github.com/MrEthical07/streamauth/storage"
	"github.com/MrEthical07/streamauth/token"
	"github.com/MrEthical07/streamauth/userstore"
)

var (
	// ErrUnauthenticated is returned when a request carries no usable credentials.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials covers a wrong username, a wrong password and a banned account alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid covers malformed, forged, mistyped and revoked tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrRateLimitExceeded is matched by every *RateLimitError.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInsufficientPermissions is returned when the role or grants do not allow the action.
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	// ErrStorage is returned when a backend the operation depends on is unreachable.
	ErrStorage = errors.New("storage unavailable")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrManagerNotReady is returned by methods on a nil or closed Manager.
	ErrManagerNotReady = errors.New("auth manager not initialized")
)

// RateLimitError reports a rejected login and when to retry.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimitExceeded }

// StatusCode maps an error from this package onto an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientPermissions):
		return http.StatusForbidden
	case errors.Is(err, ErrStorage), errors.Is(err, ErrManagerNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

// ErrorCode is the stable machine readable code for err. It never
// includes error text.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, ErrValidation):
		return "invalid_request"
	case errors.Is(err, ErrInsufficientPermissions):
		return "forbidden"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrStorage), errors.Is(err, ErrManagerNotReady):
		return "unavailable"
	default:
		return "unauthorized"
	}
}

// tokenError converts token package failures into the public taxonomy.
// Revocation is reported as an invalid token; a blacklist outage stays
// distinguishable through errors.Is(err, ErrStorage).
func tokenError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, storage.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrTokenInvalid, ErrStorage)
	default:
		return ErrTokenInvalid
	}
}

func validationError(err error) error {
	var ve *security.ValidationError
	if errors.As(err, &ve) {
		return fmt.Errorf("%w: %s", ErrValidation, ve.Error())
	}
	return ErrValidation
}

func isStoreOutage(err error) bool {
	return errors.Is(err, userstore.ErrUnavailable)
}
