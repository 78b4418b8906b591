package worker

import (
	"context"
	"errors"
	"time"

	"github.com/jmehdipour/payout-engine/internal/kafka"
	"github.com/jmehdipour/payout-engine/internal/metrics"
	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/jmehdipour/payout-engine/internal/service/settlement"
	"go.uber.org/zap"
)

type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// lagReporter is implemented by sources that know how far behind they are.
type lagReporter interface {
	Lag() int64
}

type PayoutCreator interface {
	CreatePayout(ctx context.Context, paymentID int64, idempotencyKey string) (*model.Payout, error)
}

// PaymentsConsumer settles payments as payments.completed events arrive.
// Messages are always committed: failures are recorded as failed payouts and
// re-driven through retry, and payments that never got a row are picked up by
// the settle sweep.
type PaymentsConsumer struct {
	Source  MessageSource
	Payouts PayoutCreator
	Log     *zap.Logger

	// InProgressWait is how long to wait before re-trying a payment whose lock
	// is held elsewhere; one re-try is made.
	InProgressWait time.Duration
}

func NewPaymentsConsumer(src MessageSource, payouts PayoutCreator, log *zap.Logger) *PaymentsConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentsConsumer{Source: src, Payouts: payouts, Log: log, InProgressWait: 2 * time.Second}
}

// Run blocks until ctx is cancelled.
func (w *PaymentsConsumer) Run(ctx context.Context) error {
	for {
		m, err := w.Source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.Log.Warn("kafka fetch", zap.Error(err))
			if !sleep(ctx, 200*time.Millisecond) {
				return nil
			}
			continue
		}
		w.Handle(ctx, m)
	}
}

// Handle settles the payment behind one message and commits it.
func (w *PaymentsConsumer) Handle(ctx context.Context, m kafka.Message) {
	defer func() {
		if err := w.Source.Commit(ctx, m); err != nil && ctx.Err() == nil {
			w.Log.Error("kafka commit", zap.Int64("offset", m.Offset), zap.Error(err))
		}
		if l, ok := w.Source.(lagReporter); ok {
			metrics.PaymentsConsumerLag.Set(float64(l.Lag()))
		}
	}()

	env, err := kafka.DecodePaymentCompleted(m)
	if err != nil {
		w.Log.Warn("poison message skipped", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}
	log := w.Log.With(zap.Int64("payment_id", env.PaymentID))

	p, err := w.Payouts.CreatePayout(ctx, env.PaymentID, env.IdempotencyKey)
	if errors.Is(err, settlement.ErrInProgress) && sleep(ctx, w.InProgressWait) {
		p, err = w.Payouts.CreatePayout(ctx, env.PaymentID, env.IdempotencyKey)
	}
	if err != nil {
		log.Warn("payment not settled", zap.Bool("retryable", settlement.IsRetryable(err)), zap.Error(err))
		return
	}
	log.Info("payment settled", zap.String("payout_id", p.ID), zap.String("status", p.Status.String()))
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
