package settlement

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmehdipour/payout-engine/internal/fee"
	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/jmehdipour/payout-engine/internal/processor"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// GeneratePayoutReceipt returns the receipt of a completed payout.
func (s *Service) GeneratePayoutReceipt(ctx context.Context, payoutID string) (*model.Receipt, error) {
	rc, err := s.payouts.GetReceipt(ctx, payoutID)
	if err != nil {
		return nil, persistence("load receipt", err)
	}
	if rc == nil {
		return nil, fmt.Errorf("%w: completed payout %s", ErrNotFound, payoutID)
	}
	rc.OriginalDisplay = fee.Display(rc.OriginalAmount, rc.Currency)
	rc.FeeDisplay = fee.Display(rc.PlatformFee, rc.Currency)
	rc.NetDisplay = fee.Display(rc.NetAmount, rc.Currency)
	return rc, nil
}

// PayoutEvents lists the outbox events written for a payout.
func (s *Service) PayoutEvents(ctx context.Context, payoutID string) ([]model.OutboxEvent, error) {
	p, err := s.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, persistence("load payout", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: payout %s", ErrNotFound, payoutID)
	}
	events, err := s.outbox.ListByAggregate(ctx, aggregatePayout, p.ID)
	if err != nil {
		return nil, persistence("list payout events", err)
	}
	return events, nil
}

func (s *Service) GetProviderPayoutHistory(ctx context.Context, q model.HistoryQuery) (*model.PayoutHistory, error) {
	if q.Limit <= 0 {
		q.Limit = defaultHistoryLimit
	}
	if q.Limit > maxHistoryLimit {
		q.Limit = maxHistoryLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalid, q.Status)
	}

	rows, err := s.history.ListByProvider(ctx, q)
	if err != nil {
		return nil, persistence("list payouts", err)
	}
	total, err := s.history.CountByProvider(ctx, q)
	if err != nil {
		return nil, persistence("count payouts", err)
	}

	return &model.PayoutHistory{
		Payouts: rows,
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
		HasMore: q.Offset+len(rows) < total,
	}, nil
}

// GetProviderBalance sums the provider's processor balance in the settlement currency.
func (s *Service) GetProviderBalance(ctx context.Context, providerID int64) (*model.ProviderBalance, error) {
	acct, err := s.settlementAccount(ctx, providerID)
	if err != nil {
		return nil, err
	}

	bal, err := s.processor.RetrieveBalance(ctx, acct)
	if err != nil {
		return nil, upstream("retrieve balance", err)
	}

	return &model.ProviderBalance{
		ProviderID: providerID,
		Currency:   s.opts.Currency,
		Available:  processor.Sum(bal.Available, s.opts.Currency),
		Pending:    processor.Sum(bal.Pending, s.opts.Currency),
	}, nil
}

// HasCompletedOnboarding is false whenever the answer cannot be established.
func (s *Service) HasCompletedOnboarding(ctx context.Context, providerID int64) bool {
	acct, err := s.settlementAccount(ctx, providerID)
	if err != nil {
		return false
	}
	a, err := s.processor.RetrieveAccount(ctx, acct)
	if err != nil {
		s.log.Warn("onboarding status", zap.Int64("provider_id", providerID), zap.Error(err))
		return false
	}
	return a.FullyEnabled()
}

// CreateOnboardingLink returns a hosted onboarding URL for the provider,
// creating its processor account first when none is linked.
func (s *Service) CreateOnboardingLink(ctx context.Context, providerID int64) (*model.OnboardingLink, error) {
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, persistence("load provider", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: provider %d", ErrNotFound, providerID)
	}

	acct := ""
	if p.HasSettlementAccount() {
		acct = *p.SettlementAccount
	} else {
		a, err := s.processor.CreateAccount(ctx, processor.AccountProfile{
			Email:    p.Email,
			Country:  s.opts.OnboardingCountry,
			Type:     "express",
			Metadata: map[string]string{"provider_id": strconv.FormatInt(p.ID, 10)},
		})
		if err != nil {
			return nil, upstream("create account", err)
		}
		if err := s.providers.SetSettlementAccount(ctx, p.ID, a.ID); err != nil {
			return nil, persistence("link settlement account", err)
		}
		s.log.Info("settlement account created", zap.Int64("provider_id", p.ID), zap.String("account_id", a.ID))
		acct = a.ID
	}

	link, err := s.processor.CreateOnboardingLink(ctx, processor.OnboardingLinkRequest{
		AccountID:  acct,
		ReturnURL:  s.opts.OnboardingReturnURL,
		RefreshURL: s.opts.OnboardingRefreshURL,
		Type:       "account_onboarding",
	})
	if err != nil {
		return nil, upstream("create onboarding link", err)
	}
	return &model.OnboardingLink{URL: link.URL, ExpiresAt: link.ExpiresAt}, nil
}

func (s *Service) settlementAccount(ctx context.Context, providerID int64) (string, error) {
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return "", persistence("load provider", err)
	}
	if p == nil {
		return "", fmt.Errorf("%w: provider %d", ErrNotFound, providerID)
	}
	if !p.HasSettlementAccount() {
		return "", fmt.Errorf("%w: settlement account for provider %d", ErrNotFound, providerID)
	}
	return *p.SettlementAccount, nil
}
