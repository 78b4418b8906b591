package repository

import (
	"context"

	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHPayoutsRepository reads payout history from ClickHouse (latest-state view).
type CHPayoutsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHPayoutsRepository(ch *sqlx.DB) *CHPayoutsRepository {
	return &CHPayoutsRepository{ch: ch}
}

var _ HistoryReader = (*CHPayoutsRepository)(nil)

func (r *CHPayoutsRepository) ListByProvider(ctx context.Context, q model.HistoryQuery) ([]model.Payout, error) {
	query := `
		SELECT id, provider_id, payment_id, external_transfer_id, amount, platform_fee,
		       original_amount, currency, status, idempotency_key, payout_date, description,
		       failure_reason, created_at, updated_at
		FROM payouts.payouts_latest
		WHERE provider_id = ?
	`
	args := []any{q.ProviderID}

	if q.Status != "" {
		query += " AND status = ?"
		args = append(args, q.Status.String())
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, q.Limit, q.Offset)

	rows := []model.Payout{}
	if err := r.ch.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CHPayoutsRepository) CountByProvider(ctx context.Context, q model.HistoryQuery) (int, error) {
	query := `SELECT count() FROM payouts.payouts_latest WHERE provider_id = ?`
	args := []any{q.ProviderID}
	if q.Status != "" {
		query += " AND status = ?"
		args = append(args, q.Status.String())
	}

	var n uint64
	if err := r.ch.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return int(n), nil
}
