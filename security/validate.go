package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MinUsernameLen = 2
	MaxUsernameLen = 64
	MinPasswordLen = 4
	MaxPasswordLen = 128
)

// ErrInvalidInput is matched by every *ValidationError.
var ErrInvalidInput = errors.New("invalid input")

// ValidationError names the offending field. Message is safe to show to
// clients; it never echoes the input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

const injectionChars = "<>'\";\\`${}()|"

// NormalizeUsername trims and NFKC-folds a username so visually identical
// forms share one identity and one rate limit budget.
func NormalizeUsername(username string) string {
	return norm.NFKC.String(strings.TrimSpace(username))
}

// ValidateCredentials checks shape only and returns the normalized
// username. It says nothing about whether the credentials are correct.
func ValidateCredentials(username, password string) (string, error) {
	name := NormalizeUsername(username)
	if n := utf8.RuneCountInString(name); n < MinUsernameLen || n > MaxUsernameLen {
		return "", &ValidationError{Field: "username", Message: fmt.Sprintf("must be %d to %d characters", MinUsernameLen, MaxUsernameLen)}
	}
	for _, r := range name {
		if unicode.IsControl(r) || strings.ContainsRune(injectionChars, r) {
			return "", &ValidationError{Field: "username", Message: "contains forbidden characters"}
		}
	}

	if !utf8.ValidString(password) {
		return "", &ValidationError{Field: "password", Message: "must be valid UTF-8"}
	}
	if n := utf8.RuneCountInString(password); n < MinPasswordLen || n > MaxPasswordLen {
		return "", &ValidationError{Field: "password", Message: fmt.Sprintf("must be %d to %d characters", MinPasswordLen, MaxPasswordLen)}
	}
	for _, r := range password {
		if unicode.IsControl(r) {
			return "", &ValidationError{Field: "password", Message: "contains control characters"}
		}
	}
	return name, nil
}
