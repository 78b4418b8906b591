package model

import "time"

// Receipt is the flat view of a completed payout.
type Receipt struct {
	PayoutID           string    `db:"payout_id" json:"payout_id"`
	PaymentID          int64     `db:"payment_id" json:"payment_id"`
	ExternalTransferID string    `db:"external_transfer_id" json:"external_transfer_id"`
	PayoutDate         time.Time `db:"payout_date" json:"payout_date"`
	OriginalAmount     int64     `db:"original_amount" json:"original_amount"`
	PlatformFee        int64     `db:"platform_fee" json:"platform_fee"`
	NetAmount          int64     `db:"amount" json:"net_amount"`
	Currency           string    `db:"currency" json:"currency"`
	ProviderID         int64     `db:"provider_id" json:"provider_id"`
	ProviderName       string    `db:"provider_name" json:"provider_name"`
	ProviderEmail      string    `db:"provider_email" json:"provider_email"`
	CustomerID         int64     `db:"customer_id" json:"customer_id"`
	CustomerName       string    `db:"customer_name" json:"customer_name"`
	CustomerEmail      string    `db:"customer_email" json:"customer_email"`
	ServiceTitle       *string   `db:"service_title" json:"service_title,omitempty"`
	ServiceDescription *string   `db:"service_description" json:"service_description,omitempty"`

	// Display strings in major units, filled by the reporter.
	OriginalDisplay string `db:"-" json:"original_display"`
	FeeDisplay      string `db:"-" json:"fee_display"`
	NetDisplay      string `db:"-" json:"net_display"`
}

type HistoryQuery struct {
	ProviderID int64
	Limit      int
	Offset     int
	Status     PayoutStatus // optional
}

type PayoutHistory struct {
	Payouts []Payout `json:"payouts"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
	HasMore bool     `json:"has_more"`
}

type ProviderBalance struct {
	ProviderID int64  `json:"provider_id"`
	Currency   string `json:"currency"`
	Available  int64  `json:"available"`
	Pending    int64  `json:"pending"`
}

type OnboardingLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BatchError is one failed item of a pending-payout sweep.
type BatchError struct {
	PaymentID int64  `json:"payment_id"`
	Error     string `json:"error"`
}

type BatchResult struct {
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Errors    []BatchError `json:"errors"`
}
