package model

import "time"

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
	PayoutRetried    PayoutStatus = "retried" // superseded failed row
)

func (s PayoutStatus) String() string { return string(s) }

func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutPending, PayoutProcessing, PayoutCompleted, PayoutFailed, PayoutRetried:
		return true
	}
	return false
}

// Active reports whether a row with this status blocks a new settlement of the same payment.
func (s PayoutStatus) Active() bool {
	return s == PayoutPending || s == PayoutProcessing || s == PayoutCompleted
}

// Payout is one settlement attempt persisted in the payouts table.
type Payout struct {
	ID                 string       `db:"id" json:"id"`
	ProviderID         int64        `db:"provider_id" json:"provider_id"`
	PaymentID          int64        `db:"payment_id" json:"payment_id"`
	ExternalTransferID *string      `db:"external_transfer_id" json:"external_transfer_id"` // set only when completed
	Amount             int64        `db:"amount" json:"amount"`                             // net to provider, minor units
	PlatformFee        int64        `db:"platform_fee" json:"platform_fee"`
	OriginalAmount     int64        `db:"original_amount" json:"original_amount"` // gross
	Currency           string       `db:"currency" json:"currency"`
	Status             PayoutStatus `db:"status" json:"status"`
	IdempotencyKey     string       `db:"idempotency_key" json:"idempotency_key"`
	PayoutDate         *time.Time   `db:"payout_date" json:"payout_date,omitempty"`
	Description        *string      `db:"description" json:"description,omitempty"`
	FailureReason      *string      `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
}

// Balanced reports amount + fee == gross.
func (p Payout) Balanced() bool {
	return p.Amount+p.PlatformFee == p.OriginalAmount
}

func StrPtr(s string) *string { return &s }
