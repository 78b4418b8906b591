package processor

import (
	"context"
	"fmt"
	"time"
)

type Capabilities map[string]string

type Account struct {
	ID               string       `json:"id"`
	Capabilities     Capabilities `json:"capabilities"`
	ChargesEnabled   bool         `json:"charges_enabled"`
	PayoutsEnabled   bool         `json:"payouts_enabled"`
	DetailsSubmitted bool         `json:"details_submitted"`
}

// TransfersActive reports the live "transfers" capability.
func (a Account) TransfersActive() bool { return a.Capabilities["transfers"] == "active" }

// FullyEnabled reports whether the account has completed onboarding.
func (a Account) FullyEnabled() bool {
	return a.DetailsSubmitted && a.ChargesEnabled && a.PayoutsEnabled
}

type AccountProfile struct {
	Email      string            `json:"email"`
	Country    string            `json:"country,omitempty"`
	Type       string            `json:"type"`
	BusinessID string            `json:"business_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type TransferRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Destination    string            `json:"destination"`
	CorrelationTag string            `json:"transfer_group"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type Transfer struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Funds struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Balance struct {
	Available []Funds `json:"available"`
	Pending   []Funds `json:"pending"`
}

// Sum totals the entries in the given currency.
func Sum(funds []Funds, currency string) int64 {
	var total int64
	for _, f := range funds {
		if f.Currency == currency {
			total += f.Amount
		}
	}
	return total
}

type OnboardingLinkRequest struct {
	AccountID  string `json:"account"`
	ReturnURL  string `json:"return_url"`
	RefreshURL string `json:"refresh_url"`
	Type       string `json:"type"`
}

type OnboardingLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// APIError is a non-2xx processor response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("processor status=%d code=%s: %s", e.Status, e.Code, e.Message)
}

type Accounts interface {
	RetrieveAccount(ctx context.Context, accountID string) (*Account, error)
	CreateAccount(ctx context.Context, profile AccountProfile) (*Account, error)
	CreateOnboardingLink(ctx context.Context, req OnboardingLinkRequest) (*OnboardingLink, error)
}

type Transfers interface {
	CreateTransfer(ctx context.Context, req TransferRequest, idempotencyKey string) (*Transfer, error)
}

type Balances interface {
	RetrieveBalance(ctx context.Context, onBehalfOf string) (*Balance, error)
}

type Client interface {
	Accounts
	Transfers
	Balances
}
