package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmehdipour/payout-engine/internal/breaker"
	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/jmehdipour/payout-engine/internal/processor"
	"github.com/stretchr/testify/assert"
)

type providersStub struct {
	p   *model.Provider
	err error
}

func (s providersStub) GetByID(context.Context, int64) (*model.Provider, error) { return s.p, s.err }

type accountsStub struct {
	acct  *processor.Account
	err   error
	calls int
}

func (s *accountsStub) RetrieveAccount(context.Context, string) (*processor.Account, error) {
	s.calls++
	return s.acct, s.err
}

func (s *accountsStub) CreateAccount(context.Context, processor.AccountProfile) (*processor.Account, error) {
	return nil, errors.New("not used")
}

func (s *accountsStub) CreateOnboardingLink(context.Context, processor.OnboardingLinkRequest) (*processor.OnboardingLink, error) {
	return nil, errors.New("not used")
}

func verifiedProvider() *model.Provider {
	return &model.Provider{ID: 7, Name: "Acme Plumbing", Verified: true, SettlementAccount: model.StrPtr("acct_7")}
}

func enabledAccount() *processor.Account {
	return &processor.Account{
		ID:               "acct_7",
		Capabilities:     processor.Capabilities{"transfers": "active"},
		ChargesEnabled:   true,
		PayoutsEnabled:   true,
		DetailsSubmitted: true,
	}
}

func TestCheck(t *testing.T) {
	unverified := verifiedProvider()
	unverified.Verified = false
	noAccount := verifiedProvider()
	noAccount.SettlementAccount = nil

	inactive := enabledAccount()
	inactive.Capabilities["transfers"] = "pending"
	incomplete := enabledAccount()
	incomplete.PayoutsEnabled = false

	tests := []struct {
		name      string
		providers providersStub
		accounts  *accountsStub
		want      Verdict
		remote    int
	}{
		{"eligible", providersStub{p: verifiedProvider()}, &accountsStub{acct: enabledAccount()}, Verdict{Eligible: true}, 1},
		{"missing provider", providersStub{}, &accountsStub{}, Verdict{Reason: ReasonProviderMissing}, 0},
		{"lookup error", providersStub{err: errors.New("db down")}, &accountsStub{}, Verdict{Reason: ReasonLookupFailed}, 0},
		{"not verified", providersStub{p: unverified}, &accountsStub{}, Verdict{Reason: ReasonNotVerified}, 0},
		{"no account", providersStub{p: noAccount}, &accountsStub{}, Verdict{Reason: ReasonNoAccount}, 0},
		{"processor error", providersStub{p: verifiedProvider()}, &accountsStub{err: errors.New("timeout")}, Verdict{Reason: ReasonAccountCheck}, 1},
		{"transfers inactive", providersStub{p: verifiedProvider()}, &accountsStub{acct: inactive}, Verdict{Reason: ReasonTransfersOff}, 1},
		{"not fully enabled", providersStub{p: verifiedProvider()}, &accountsStub{acct: incomplete}, Verdict{Reason: ReasonAccountIncomplete}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(tt.providers, tt.accounts, nil)
			got := c.Check(context.Background(), 7)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Eligible, c.IsEligible(context.Background(), 7))
			assert.Equal(t, tt.remote*2, tt.accounts.calls)
		})
	}
}

func TestCheckOpenAccountsBreakerResolvesFalse(t *testing.T) {
	accounts := &accountsStub{err: errors.New("503")}
	b := breaker.New(breaker.Settings{Name: processor.BreakerAccounts, FailureThreshold: 1, CoolDown: time.Hour})
	g := processor.NewGuarded(guardedClient{accounts}, b,
		breaker.New(breaker.Settings{Name: processor.BreakerTransfers}),
		breaker.New(breaker.Settings{Name: processor.BreakerBalances}),
	)
	c := NewChecker(providersStub{p: verifiedProvider()}, g, nil)

	assert.False(t, c.IsEligible(context.Background(), 7))
	assert.Equal(t, breaker.Open, b.State())

	assert.False(t, c.IsEligible(context.Background(), 7))
	assert.Equal(t, 1, accounts.calls, "open breaker must not reach the processor")
}

type guardedClient struct{ *accountsStub }

func (guardedClient) CreateTransfer(context.Context, processor.TransferRequest, string) (*processor.Transfer, error) {
	return nil, errors.New("not used")
}

func (guardedClient) RetrieveBalance(context.Context, string) (*processor.Balance, error) {
	return nil, errors.New("not used")
}
