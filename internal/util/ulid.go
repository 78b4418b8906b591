package util

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string
func New() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.Reader, 0)

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// PayoutKey is the processor idempotency key generated for a payment settlement.
func PayoutKey(paymentID int64) string {
	return fmt.Sprintf("payout-%d-%s", paymentID, New())
}

// RetryKey is the fresh key used when a failed payout is re-driven.
func RetryKey(paymentID int64) string {
	return fmt.Sprintf("payout-%d-retry-%s", paymentID, New())
}
