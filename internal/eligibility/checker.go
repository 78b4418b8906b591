package eligibility

import (
	"context"

	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/jmehdipour/payout-engine/internal/processor"
	"go.uber.org/zap"
)

// ProviderSource is the part of the providers store the checker reads.
type ProviderSource interface {
	GetByID(ctx context.Context, id int64) (*model.Provider, error)
}

// Verdict explains an eligibility decision.
type Verdict struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

const (
	ReasonProviderMissing   = "provider not found"
	ReasonLookupFailed      = "provider lookup failed"
	ReasonNotVerified       = "provider not verified"
	ReasonNoAccount         = "no settlement account linked"
	ReasonAccountCheck      = "settlement account check failed"
	ReasonTransfersOff      = "transfers capability inactive"
	ReasonAccountIncomplete = "settlement account not fully enabled"
)

// Checker decides whether a provider can receive payouts. It fails closed:
// every error resolves to ineligible.
type Checker struct {
	providers ProviderSource
	accounts  processor.Accounts
	log       *zap.Logger
}

func NewChecker(providers ProviderSource, accounts processor.Accounts, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{providers: providers, accounts: accounts, log: log}
}

func (c *Checker) IsEligible(ctx context.Context, providerID int64) bool {
	return c.Check(ctx, providerID).Eligible
}

func (c *Checker) Check(ctx context.Context, providerID int64) Verdict {
	p, err := c.providers.GetByID(ctx, providerID)
	if err != nil {
		c.log.Error("eligibility: provider lookup", zap.Int64("provider_id", providerID), zap.Error(err))
		return Verdict{Reason: ReasonLookupFailed}
	}
	if p == nil {
		return Verdict{Reason: ReasonProviderMissing}
	}
	if !p.Verified {
		return Verdict{Reason: ReasonNotVerified}
	}
	if !p.HasSettlementAccount() {
		return Verdict{Reason: ReasonNoAccount}
	}

	acct, err := c.accounts.RetrieveAccount(ctx, *p.SettlementAccount)
	if err != nil {
		c.log.Warn("eligibility: account check",
			zap.Int64("provider_id", providerID),
			zap.String("account_id", *p.SettlementAccount),
			zap.Error(err),
		)
		return Verdict{Reason: ReasonAccountCheck}
	}
	if !acct.TransfersActive() {
		return Verdict{Reason: ReasonTransfersOff}
	}
	if !acct.FullyEnabled() {
		return Verdict{Reason: ReasonAccountIncomplete}
	}
	return Verdict{Eligible: true}
}
