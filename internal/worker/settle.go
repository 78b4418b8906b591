package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type BatchRunner interface {
	ProcessPendingPayouts(ctx context.Context, batchSize int) (*model.BatchResult, error)
}

// Settler sweeps pending payouts on a cron schedule. Overlapping runs are skipped.
type Settler struct {
	Runner    BatchRunner
	Schedule  string // standard 5-field cron
	BatchSize int
	Timeout   time.Duration // per sweep, default 10m
	Log       *zap.Logger
}

func NewSettler(runner BatchRunner, schedule string, batchSize int, log *zap.Logger) *Settler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Settler{
		Runner:    runner,
		Schedule:  schedule,
		BatchSize: batchSize,
		Timeout:   10 * time.Minute,
		Log:       log,
	}
}

// Run blocks until ctx is cancelled, then waits for an in-flight sweep.
func (w *Settler) Run(ctx context.Context) error {
	schedule, err := cron.ParseStandard(w.Schedule)
	if err != nil {
		return fmt.Errorf("failed to parse cron expression: %w", err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(schedule, cron.FuncJob(func() { w.RunOnce(ctx) }))
	c.Start()
	w.Log.Info("settle worker started",
		zap.String("schedule", w.Schedule),
		zap.Int("batch_size", w.BatchSize),
		zap.Time("next", schedule.Next(time.Now())),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// RunOnce performs a single sweep.
func (w *Settler) RunOnce(ctx context.Context) *model.BatchResult {
	if ctx.Err() != nil {
		return nil
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := w.Runner.ProcessPendingPayouts(ctx, w.BatchSize)
	if err != nil {
		w.Log.Error("pending payout sweep failed", zap.Error(err))
		return nil
	}
	for _, e := range res.Errors {
		w.Log.Warn("payout not settled", zap.Int64("payment_id", e.PaymentID), zap.String("error", e.Error))
	}
	return res
}
