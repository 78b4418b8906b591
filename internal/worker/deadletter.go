package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/payout-engine/internal/metrics"
	"github.com/jmehdipour/payout-engine/internal/model"
	"go.uber.org/zap"
)

type Drainer interface {
	Drain(ctx context.Context, fn func(context.Context, *model.Payout) error) (int, error)
	Len(ctx context.Context) (int64, error)
}

type FailureRecorder interface {
	ReplayFailureRecord(ctx context.Context, p *model.Payout) error
}

// DeadLetterReplayer moves dead-lettered failure records back into the payouts table.
type DeadLetterReplayer struct {
	Queue    Drainer
	Recorder FailureRecorder
	Every    time.Duration
	Log      *zap.Logger
}

func NewDeadLetterReplayer(q Drainer, rec FailureRecorder, every time.Duration, log *zap.Logger) *DeadLetterReplayer {
	if log == nil {
		log = zap.NewNop()
	}
	if every <= 0 {
		every = 30 * time.Second
	}
	return &DeadLetterReplayer{Queue: q, Recorder: rec, Every: every, Log: log}
}

// Run drains once at start and then on every tick until ctx is cancelled.
func (w *DeadLetterReplayer) Run(ctx context.Context) error {
	tick := time.NewTicker(w.Every)
	defer tick.Stop()

	for {
		w.DrainOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

func (w *DeadLetterReplayer) DrainOnce(ctx context.Context) int {
	n, err := w.Queue.Drain(ctx, w.Recorder.ReplayFailureRecord)
	if err != nil && ctx.Err() == nil {
		w.Log.Warn("dead letter drain stopped", zap.Int("replayed", n), zap.Error(err))
	}
	if n > 0 {
		w.Log.Info("dead letter replayed", zap.Int("replayed", n))
	}
	if depth, err := w.Queue.Len(context.WithoutCancel(ctx)); err == nil {
		metrics.DeadLetterDepth.Set(float64(depth))
	}
	return n
}
