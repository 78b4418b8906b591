package model

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// SettlementContext is the joined payment/provider/service row a settlement needs.
type SettlementContext struct {
	PaymentID         int64         `db:"payment_id"`
	Amount            int64         `db:"amount"` // gross, minor units
	Currency          string        `db:"currency"`
	PaymentStatus     PaymentStatus `db:"payment_status"`
	ProviderID        int64         `db:"provider_id"`
	SettlementAccount *string       `db:"settlement_account_id"`
	ServiceID         *int64        `db:"service_id"`
	ServiceTitle      *string       `db:"service_title"`
	FeePercent        *float64      `db:"platform_fee_percent"` // per-service override
}

func (c SettlementContext) Completed() bool { return c.PaymentStatus == PaymentCompleted }

// PendingPayment is a completed payment with no payout row yet.
type PendingPayment struct {
	PaymentID   int64     `db:"id"`
	ProviderID  int64     `db:"provider_id"`
	Amount      int64     `db:"amount"`
	CompletedAt time.Time `db:"completed_at"`
}
