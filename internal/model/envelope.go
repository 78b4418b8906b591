package model

// PaymentCompletedEnvelope is consumed from the payments.completed topic.
type PaymentCompletedEnvelope struct {
	PaymentID      int64  `json:"payment_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// PayoutEvent is the outbox payload for payouts.completed / payouts.failed.
type PayoutEvent struct {
	PayoutID   string       `json:"payout_id"`
	PaymentID  int64        `json:"payment_id"`
	ProviderID int64        `json:"provider_id"`
	Amount     int64        `json:"amount"`
	Currency   string       `json:"currency"`
	Status     PayoutStatus `json:"status"`
	Reason     string       `json:"reason,omitempty"`
}
