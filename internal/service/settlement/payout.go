package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmehdipour/payout-engine/internal/lock"
	"github.com/jmehdipour/payout-engine/internal/metrics"
	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/jmehdipour/payout-engine/internal/processor"
	"github.com/jmehdipour/payout-engine/internal/repository"
	"github.com/jmehdipour/payout-engine/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const aggregatePayout = "payout"

// CreatePayout settles a completed payment. A second call for a payment that
// already has an active payout returns that payout unchanged.
// An empty idempotencyKey is replaced by one generated for the payment.
func (s *Service) CreatePayout(ctx context.Context, paymentID int64, idempotencyKey string) (*model.Payout, error) {
	p, _, err := s.Settle(ctx, paymentID, idempotencyKey)
	return p, err
}

// Settle is CreatePayout that also reports whether a new payout row was written.
func (s *Service) Settle(ctx context.Context, paymentID int64, idempotencyKey string) (*model.Payout, bool, error) {
	key := idempotencyKey
	if key == "" {
		key = util.PayoutKey(paymentID)
	}

	release, err := s.acquire(ctx, paymentID)
	if err != nil {
		return nil, false, err
	}
	defer release()

	return s.settle(ctx, paymentID, key)
}

// acquire takes the per-payment settlement lock. Redis trouble is logged and
// the call proceeds on the store guard alone.
func (s *Service) acquire(ctx context.Context, paymentID int64) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}
	release, err := s.locker.Acquire(ctx, "payment:"+strconv.FormatInt(paymentID, 10), s.opts.LockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, fmt.Errorf("%w: payment %d", ErrInProgress, paymentID)
	}
	if err != nil {
		s.log.Warn("settlement lock unavailable", zap.Int64("payment_id", paymentID), zap.Error(err))
		return noop, nil
	}
	return release, nil
}

func (s *Service) settle(ctx context.Context, paymentID int64, key string) (*model.Payout, bool, error) {
	log := s.log.With(zap.Int64("payment_id", paymentID))

	// Store work runs on txCtx: once a transfer is accepted, its row must be
	// committed even if the caller goes away. Only the processor call sees ctx.
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.TxTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(txCtx, nil)
	if err != nil {
		return nil, false, persistence("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := s.payouts.GetActiveByPaymentID(txCtx, tx, paymentID)
	if err != nil {
		return nil, false, persistence("lookup payout", err)
	}
	if existing != nil {
		if err := tx.Commit(); err != nil {
			return nil, false, persistence("commit", err)
		}
		metrics.PayoutsTotal.WithLabelValues("idempotent").Inc()
		log.Info("payout already exists", zap.String("payout_id", existing.ID))
		return existing, false, nil
	}

	sc, err := s.payments.GetSettlementContext(txCtx, tx, paymentID)
	if err != nil {
		return nil, false, persistence("load payment", err)
	}
	if sc == nil || !sc.Completed() {
		return nil, false, fmt.Errorf("%w: completed payment %d", ErrNotFound, paymentID)
	}

	if !s.eligibility.IsEligible(ctx, sc.ProviderID) || !hasAccount(sc) {
		return nil, false, s.fail(ctx, tx, sc, key,
			fmt.Errorf("%w: provider %d", ErrIneligible, sc.ProviderID))
	}

	platformFee, net := s.fees.Split(sc.Amount, sc.FeePercent)
	currency := s.currencyOf(sc)

	tr, err := s.processor.CreateTransfer(ctx, processor.TransferRequest{
		Amount:         net,
		Currency:       currency,
		Destination:    *sc.SettlementAccount,
		CorrelationTag: fmt.Sprintf("payment_%d", paymentID),
		Metadata: map[string]string{
			"payment_id":      strconv.FormatInt(paymentID, 10),
			"provider_id":     strconv.FormatInt(sc.ProviderID, 10),
			"platform_fee":    strconv.FormatInt(platformFee, 10),
			"original_amount": strconv.FormatInt(sc.Amount, 10),
		},
	}, key)
	if err != nil {
		return nil, false, s.fail(ctx, tx, sc, key, upstream("create transfer", err))
	}

	now := time.Now().UTC()
	p := &model.Payout{
		ID:                 util.New(),
		ProviderID:         sc.ProviderID,
		PaymentID:          paymentID,
		ExternalTransferID: &tr.ID,
		Amount:             net,
		PlatformFee:        platformFee,
		OriginalAmount:     sc.Amount,
		Currency:           currency,
		Status:             model.PayoutCompleted,
		IdempotencyKey:     key,
		PayoutDate:         &now,
		Description:        description(sc),
	}

	err = s.payouts.Insert(txCtx, tx, p)
	if errors.Is(err, repository.ErrDuplicate) {
		// a concurrent settlement won the active-payout key
		_ = tx.Rollback()
		winner, gerr := s.payouts.GetActiveByPaymentID(txCtx, nil, paymentID)
		if gerr != nil || winner == nil {
			return nil, false, persistence("load concurrent payout", errors.Join(err, gerr))
		}
		log.Warn("concurrent settlement detected, transfer needs reconciliation",
			zap.String("transfer_id", tr.ID),
			zap.String("payout_id", winner.ID),
		)
		metrics.PayoutsTotal.WithLabelValues("idempotent").Inc()
		return winner, false, nil
	}
	if err != nil {
		return nil, false, s.fail(ctx, tx, sc, key,
			persistence(fmt.Sprintf("record transfer %s", tr.ID), err))
	}

	if err := s.outbox.InsertJSON(txCtx, tx, aggregatePayout, p.ID, repository.TopicPayoutCompleted, event(p, "")); err != nil {
		return nil, false, s.fail(ctx, tx, sc, key,
			persistence(fmt.Sprintf("outbox for transfer %s", tr.ID), err))
	}

	if err := tx.Commit(); err != nil {
		return nil, false, s.fail(ctx, tx, sc, key,
			persistence(fmt.Sprintf("commit transfer %s", tr.ID), err))
	}

	metrics.PayoutsTotal.WithLabelValues("completed").Inc()
	log.Info("payout completed",
		zap.String("payout_id", p.ID),
		zap.String("transfer_id", tr.ID),
		zap.Int64("amount", p.Amount),
		zap.Int64("platform_fee", p.PlatformFee),
	)
	return p, true, nil
}

// fail rolls back the settlement transaction, records a failed payout outside
// of it and returns cause unchanged.
func (s *Service) fail(ctx context.Context, tx *sqlx.Tx, sc *model.SettlementContext, key string, cause error) error {
	_ = tx.Rollback()
	metrics.PayoutsTotal.WithLabelValues("failed").Inc()

	platformFee, net := s.fees.Split(sc.Amount, sc.FeePercent)
	p := &model.Payout{
		ID:             util.New(),
		ProviderID:     sc.ProviderID,
		PaymentID:      sc.PaymentID,
		Amount:         net,
		PlatformFee:    platformFee,
		OriginalAmount: sc.Amount,
		Currency:       s.currencyOf(sc),
		Status:         model.PayoutFailed,
		IdempotencyKey: key,
		Description:    description(sc),
		FailureReason:  model.StrPtr(cause.Error()),
	}

	s.log.Warn("payout failed",
		zap.Int64("payment_id", sc.PaymentID),
		zap.String("payout_id", p.ID),
		zap.Error(cause),
	)
	s.recordFailure(context.WithoutCancel(ctx), p)
	return cause
}

// recordFailure never returns an error: a row that cannot be stored goes to the
// dead letter queue, and failing that, to the log.
func (s *Service) recordFailure(ctx context.Context, p *model.Payout) {
	err := s.ReplayFailureRecord(ctx, p)
	if err == nil {
		return
	}
	log := s.log.With(zap.Int64("payment_id", p.PaymentID), zap.String("payout_id", p.ID))

	if s.deadLetter != nil {
		derr := s.deadLetter.Push(ctx, p)
		if derr == nil {
			log.Warn("failed payout dead-lettered", zap.Error(err))
			return
		}
		err = errors.Join(err, derr)
	}
	metrics.FailureRecordsDropped.Inc()
	log.Error("failed payout not recorded", zap.Error(err))
}

// ReplayFailureRecord stores a failed payout row with its outbox event.
// Replaying a row that is already stored is a no-op.
func (s *Service) ReplayFailureRecord(ctx context.Context, p *model.Payout) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = s.payouts.Insert(ctx, tx, p)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert failed payout: %w", err)
	}
	if err := s.outbox.InsertJSON(ctx, tx, aggregatePayout, p.ID, repository.TopicPayoutFailed, event(p, deref(p.FailureReason))); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return tx.Commit()
}

// RetryPayout re-drives the payment behind a failed payout with a fresh
// idempotency key and marks the failed row as retried.
func (s *Service) RetryPayout(ctx context.Context, payoutID string) (*model.Payout, error) {
	orig, err := s.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, persistence("load payout", err)
	}
	if orig == nil || orig.Status != model.PayoutFailed {
		return nil, fmt.Errorf("%w: failed payout %s", ErrNotFound, payoutID)
	}

	p, err := s.CreatePayout(ctx, orig.PaymentID, util.RetryKey(orig.PaymentID))
	if err != nil {
		return nil, err
	}

	// a failed flip leaves the old row failed; retrying again returns p and flips it
	if err := s.payouts.UpdateStatus(context.WithoutCancel(ctx), nil, orig.ID, model.PayoutRetried); err != nil {
		s.log.Error("mark payout retried",
			zap.String("payout_id", orig.ID),
			zap.String("new_payout_id", p.ID),
			zap.Error(err),
		)
	}
	return p, nil
}

func (s *Service) currencyOf(sc *model.SettlementContext) string {
	if sc.Currency != "" {
		return sc.Currency
	}
	return s.opts.Currency
}

func hasAccount(sc *model.SettlementContext) bool {
	return sc.SettlementAccount != nil && *sc.SettlementAccount != ""
}

func description(sc *model.SettlementContext) *string {
	if sc.ServiceTitle != nil && *sc.ServiceTitle != "" {
		return model.StrPtr("Payout for " + *sc.ServiceTitle)
	}
	return model.StrPtr(fmt.Sprintf("Payout for payment %d", sc.PaymentID))
}

func event(p *model.Payout, reason string) model.PayoutEvent {
	return model.PayoutEvent{
		PayoutID:   p.ID,
		PaymentID:  p.PaymentID,
		ProviderID: p.ProviderID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     p.Status,
		Reason:     reason,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
