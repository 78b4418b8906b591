package app

import (
	"fmt"

	"github.com/jmehdipour/payout-engine/internal/config"
	"github.com/jmehdipour/payout-engine/internal/db"
	"github.com/jmehdipour/payout-engine/internal/deadletter"
	"github.com/jmehdipour/payout-engine/internal/eligibility"
	"github.com/jmehdipour/payout-engine/internal/fee"
	"github.com/jmehdipour/payout-engine/internal/lock"
	"github.com/jmehdipour/payout-engine/internal/processor"
	"github.com/jmehdipour/payout-engine/internal/repository"
	"github.com/jmehdipour/payout-engine/internal/service/settlement"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds the connections and the settlement service built from config.
type App struct {
	MySQL      *sqlx.DB
	ClickHouse *sqlx.DB // nil unless reporting reads from ClickHouse
	Redis      *redis.Client

	Processor   *processor.Guarded
	Eligibility *eligibility.Checker
	DeadLetter  *deadletter.RedisQueue
	Settlement  *settlement.Service
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{}

	var err error
	a.MySQL, err = db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}

	a.Redis, err = db.NewRedisClient(db.RedisOpts{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	if cfg.Reporting.HistorySource == "clickhouse" {
		a.ClickHouse, err = db.NewClickHouseConnection(db.ClickHouseOpts{
			DSN:             cfg.ClickHouse.DSN,
			MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
			PingTimeout:     cfg.ClickHouse.PingTimeout,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("clickhouse connect: %w", err)
		}
	}

	a.wire(cfg, log)
	return a, nil
}

func (a *App) wire(cfg config.Config, log *zap.Logger) {
	// repos (MySQL)
	payoutsRepo := repository.NewPayoutsRepository(a.MySQL)
	paymentsRepo := repository.NewPaymentsRepository(a.MySQL)
	providersRepo := repository.NewProvidersRepository(a.MySQL)
	outboxRepo := repository.NewOutboxRepository(a.MySQL)

	var history repository.HistoryReader = payoutsRepo
	if a.ClickHouse != nil {
		history = repository.NewCHPayoutsRepository(a.ClickHouse)
	}

	// processor behind one breaker per operation group
	br := cfg.Processor.Breakers
	a.Processor = processor.NewGuarded(
		processor.NewHTTPClient(cfg.Processor.BaseURL, cfg.Processor.SecretKey, cfg.Processor.Timeout),
		processor.NewBreaker(processor.BreakerAccounts, br.Accounts.FailThreshold, br.Accounts.CoolDown, log),
		processor.NewBreaker(processor.BreakerTransfers, br.Transfers.FailThreshold, br.Transfers.CoolDown, log),
		processor.NewBreaker(processor.BreakerBalances, br.Balances.FailThreshold, br.Balances.CoolDown, log),
	)

	a.Eligibility = eligibility.NewChecker(providersRepo, a.Processor, log.Named("eligibility"))
	a.DeadLetter = deadletter.NewRedisQueue(a.Redis, cfg.Settlement.DeadLetterKey, log.Named("deadletter"))

	s := cfg.Settlement
	a.Settlement = settlement.New(settlement.Deps{
		DB:          a.MySQL,
		Payouts:     payoutsRepo,
		History:     history,
		Payments:    paymentsRepo,
		Providers:   providersRepo,
		Outbox:      outboxRepo,
		Processor:   a.Processor,
		Eligibility: a.Eligibility,
		Fees:        fee.NewCalculator(s.DefaultFeePercent, paymentsRepo, log.Named("fee")),
		Locker:      lock.NewRedisLocker(a.Redis, "payouts:lock:"),
		DeadLetter:  a.DeadLetter,
		Log:         log.Named("settlement"),
	}, settlement.Options{
		Currency:             s.Currency,
		BatchSize:            s.BatchSize,
		LockTTL:              s.LockTTL,
		OnboardingReturnURL:  cfg.Onboarding.ReturnURL,
		OnboardingRefreshURL: cfg.Onboarding.RefreshURL,
		OnboardingCountry:    cfg.Onboarding.Country,
	})
}

func (a *App) Close() {
	if a.ClickHouse != nil {
		_ = a.ClickHouse.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.MySQL != nil {
		_ = a.MySQL.Close()
	}
}
