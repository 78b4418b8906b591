package settlement

import (
	"context"

	"github.com/jmehdipour/payout-engine/internal/metrics"
	"github.com/jmehdipour/payout-engine/internal/model"
	"go.uber.org/zap"
)

// ProcessPendingPayouts settles up to batchSize completed payments that have no
// payout yet, one at a time. Item failures are reported in the result; only a
// failed scan returns an error.
func (s *Service) ProcessPendingPayouts(ctx context.Context, batchSize int) (*model.BatchResult, error) {
	if batchSize <= 0 {
		batchSize = s.opts.BatchSize
	}

	pending, err := s.payments.ListPendingSettlement(ctx, batchSize)
	if err != nil {
		return nil, persistence("scan pending payments", err)
	}
	if len(pending) > batchSize {
		pending = pending[:batchSize]
	}

	res := &model.BatchResult{Errors: []model.BatchError{}}
	for _, pp := range pending {
		if ctx.Err() != nil {
			s.log.Warn("pending payout sweep interrupted",
				zap.Int("processed", res.Processed), zap.Int("scanned", len(pending)))
			break
		}
		res.Processed++

		if _, err := s.CreatePayout(ctx, pp.PaymentID, ""); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, model.BatchError{PaymentID: pp.PaymentID, Error: err.Error()})
			metrics.BatchItemsTotal.WithLabelValues("failed").Inc()
			continue
		}
		res.Succeeded++
		metrics.BatchItemsTotal.WithLabelValues("succeeded").Inc()
	}

	s.log.Info("pending payouts processed",
		zap.Int("processed", res.Processed),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
