package settlement

import (
	"errors"
	"fmt"

	"github.com/jmehdipour/payout-engine/internal/breaker"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrIneligible  = errors.New("provider not eligible for payouts")
	ErrBreakerOpen = breaker.ErrOpen
	ErrUpstream    = errors.New("payment processor failure")
	ErrPersistence = errors.New("persistence failure")
	ErrInProgress  = errors.New("settlement already in progress")
	ErrInvalid     = errors.New("invalid argument")
)

// IsRetryable reports whether the same call may succeed later without any
// change on the caller's side.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBreakerOpen) ||
		errors.Is(err, ErrInProgress) ||
		errors.Is(err, ErrUpstream)
}

// upstream classifies a processor error. Breaker rejections keep their own identity.
func upstream(op string, err error) error {
	if errors.Is(err, breaker.ErrOpen) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
