package processor

import (
	"context"
	"errors"
	"time"

	"github.com/jmehdipour/payout-engine/internal/breaker"
	"github.com/jmehdipour/payout-engine/internal/metrics"
	"go.uber.org/zap"
)

const (
	BreakerAccounts  = "accounts"
	BreakerTransfers = "transfers"
	BreakerBalances  = "balances"
)

// NewBreaker builds a breaker that reports transitions to logs and metrics.
func NewBreaker(name string, failThreshold int, coolDown time.Duration, log *zap.Logger) *breaker.Breaker {
	if log == nil {
		log = zap.NewNop()
	}
	metrics.BreakerState.WithLabelValues(name).Set(float64(breaker.Closed))
	return breaker.New(breaker.Settings{
		Name:             name,
		FailureThreshold: failThreshold,
		CoolDown:         coolDown,
		OnStateChange: func(name string, from, to breaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			lvl := log.Info
			if to == breaker.Open {
				lvl = log.Warn
			}
			lvl("processor breaker transition",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
}

// Guarded routes each processor operation group through its own breaker, so a
// degraded transfer path does not block account lookups.
type Guarded struct {
	client    Client
	accounts  *breaker.Breaker
	transfers *breaker.Breaker
	balances  *breaker.Breaker
}

var _ Client = (*Guarded)(nil)

func NewGuarded(c Client, accounts, transfers, balances *breaker.Breaker) *Guarded {
	return &Guarded{client: c, accounts: accounts, transfers: transfers, balances: balances}
}

// States returns the current state of every breaker, keyed by name.
func (g *Guarded) States() map[string]string {
	return map[string]string{
		g.accounts.Name():  g.accounts.State().String(),
		g.transfers.Name(): g.transfers.State().String(),
		g.balances.Name():  g.balances.State().String(),
	}
}

func (g *Guarded) RetrieveAccount(ctx context.Context, accountID string) (*Account, error) {
	return guard(g.accounts, func() (*Account, error) {
		return g.client.RetrieveAccount(ctx, accountID)
	})
}

func (g *Guarded) CreateAccount(ctx context.Context, profile AccountProfile) (*Account, error) {
	return guard(g.accounts, func() (*Account, error) {
		return g.client.CreateAccount(ctx, profile)
	})
}

func (g *Guarded) CreateOnboardingLink(ctx context.Context, req OnboardingLinkRequest) (*OnboardingLink, error) {
	return guard(g.accounts, func() (*OnboardingLink, error) {
		return g.client.CreateOnboardingLink(ctx, req)
	})
}

func (g *Guarded) CreateTransfer(ctx context.Context, req TransferRequest, idempotencyKey string) (*Transfer, error) {
	return guard(g.transfers, func() (*Transfer, error) {
		return g.client.CreateTransfer(ctx, req, idempotencyKey)
	})
}

func (g *Guarded) RetrieveBalance(ctx context.Context, onBehalfOf string) (*Balance, error) {
	return guard(g.balances, func() (*Balance, error) {
		return g.client.RetrieveBalance(ctx, onBehalfOf)
	})
}

func guard[T any](b *breaker.Breaker, op func() (T, error)) (T, error) {
	v, err := breaker.Do(b, op)
	if err != nil && errors.Is(err, breaker.ErrOpen) {
		metrics.BreakerRejections.WithLabelValues(b.Name()).Inc()
	}
	return v, err
}
