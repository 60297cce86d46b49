package voice

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports bad user input. Reported to the actor; no state
// change occurred.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// AuthorizationError reports that the actor is not the channel's owner or the
// channel is not managed by this service. No state change occurred.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

// NotFoundError reports that a channel or target user vanished between
// validation and execution. Callers should trigger a reconciliation pass.
type NotFoundError struct {
	Kind string // "channel" or "user"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

// RateLimitedError reports a cooldown or invite-window violation.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

// StoreError wraps a failed persistence operation. The operation was aborted
// with no partial commit.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// PlatformError wraps a failed gateway call.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string { return fmt.Sprintf("platform %s: %v", e.Op, e.Err) }
func (e *PlatformError) Unwrap() error { return e.Err }

// IsUserFacing reports whether err should be shown to the acting user as-is
// (validation, authorization, not-found, rate-limit) rather than as a generic
// failure.
func IsUserFacing(err error) bool {
	var ve *ValidationError
	var ae *AuthorizationError
	var ne *NotFoundError
	var re *RateLimitedError
	return errors.As(err, &ve) || errors.As(err, &ae) || errors.As(err, &ne) || errors.As(err, &re)
}
