package usecase

import (
	"errors"
	"math"
	"time"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindInvalid
	KindUnauthenticated
	KindExpired
	KindConflict
	KindRateLimited
	KindLocked
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindExpired:
		return "expired"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindLocked:
		return "locked"
	default:
		return "internal"
	}
}

// AuthError is the typed error returned by every service operation.
// Message is safe to show to the client; Err carries the internal cause.
type AuthError struct {
	Kind              ErrorKind
	Message           string
	RetryAfter        time.Duration
	AttemptsRemaining int
	Err               error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrLocked) works
// for any locked error regardless of message.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok || t.Message != "" {
		return false
	}
	return t.Kind == e.Kind
}

// RetryAfterSeconds rounds up so a pending wait never reads as zero.
func (e *AuthError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

func (e *AuthError) RetryAfterMinutes() int {
	return int(math.Ceil(e.RetryAfter.Minutes()))
}

var (
	ErrNotFound        = &AuthError{Kind: KindNotFound}
	ErrInvalid         = &AuthError{Kind: KindInvalid}
	ErrUnauthenticated = &AuthError{Kind: KindUnauthenticated}
	ErrExpired         = &AuthError{Kind: KindExpired}
	ErrConflict        = &AuthError{Kind: KindConflict}
	ErrRateLimited     = &AuthError{Kind: KindRateLimited}
	ErrLocked          = &AuthError{Kind: KindLocked}
	ErrInternal        = &AuthError{Kind: KindInternal}
)

func newError(kind ErrorKind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

func internalError(message string, err error) *AuthError {
	return &AuthError{Kind: KindInternal, Message: message, Err: err}
}

// AsAuthError extracts an AuthError, treating anything else as internal.
func AsAuthError(err error) *AuthError {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	return internalError("internal server error", err)
}
