package settlement

import (
	"context"
	"time"

	"github.com/jmehdipour/payout-engine/internal/deadletter"
	"github.com/jmehdipour/payout-engine/internal/fee"
	"github.com/jmehdipour/payout-engine/internal/lock"
	"github.com/jmehdipour/payout-engine/internal/processor"
	"github.com/jmehdipour/payout-engine/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Eligibility interface {
	IsEligible(ctx context.Context, providerID int64) bool
}

// Deps are the collaborators of the settlement service. Locker and DeadLetter
// are optional; History defaults to Payouts.
type Deps struct {
	DB          *sqlx.DB
	Payouts     repository.PayoutsRepository
	History     repository.HistoryReader
	Payments    repository.PaymentsRepository
	Providers   repository.ProvidersRepository
	Outbox      repository.OutboxRepository
	Processor   processor.Client
	Eligibility Eligibility
	Fees        *fee.Calculator
	Locker      lock.Locker
	DeadLetter  deadletter.Queue
	Log         *zap.Logger
}

type Options struct {
	Currency  string // used when a payment carries none
	BatchSize int    // default for ProcessPendingPayouts
	LockTTL   time.Duration
	TxTimeout time.Duration // bound on the settlement transaction, default 30s

	OnboardingReturnURL  string
	OnboardingRefreshURL string
	OnboardingCountry    string
}

// Service moves net funds to providers for completed payments and reports on
// the resulting payouts.
type Service struct {
	db          *sqlx.DB
	payouts     repository.PayoutsRepository
	history     repository.HistoryReader
	payments    repository.PaymentsRepository
	providers   repository.ProvidersRepository
	outbox      repository.OutboxRepository
	processor   processor.Client
	eligibility Eligibility
	fees        *fee.Calculator
	locker      lock.Locker
	deadLetter  deadletter.Queue
	log         *zap.Logger

	opts Options
}

func New(d Deps, opts Options) *Service {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.History == nil {
		d.History = d.Payouts
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = 30 * time.Second
	}
	return &Service{
		db:          d.DB,
		payouts:     d.Payouts,
		history:     d.History,
		payments:    d.Payments,
		providers:   d.Providers,
		outbox:      d.Outbox,
		processor:   d.Processor,
		eligibility: d.Eligibility,
		fees:        d.Fees,
		locker:      d.Locker,
		deadLetter:  d.DeadLetter,
		log:         d.Log,
		opts:        opts,
	}
}

func (s *Service) IsProviderEligibleForPayouts(ctx context.Context, providerID int64) bool {
	return s.eligibility.IsEligible(ctx, providerID)
}

// CalculatePlatformFee returns the platform's cut of gross, honoring the
// service's fee override when serviceID is set.
func (s *Service) CalculatePlatformFee(ctx context.Context, gross int64, serviceID *int64) int64 {
	return s.fees.PlatformFee(ctx, gross, serviceID)
}
