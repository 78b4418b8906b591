package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

// PaymentsRepository reads the payment side of a settlement. Payments, providers
// and services are owned by the marketplace; this engine never writes them.
type PaymentsRepository interface {
	GetSettlementContext(ctx context.Context, tx *sqlx.Tx, paymentID int64) (*model.SettlementContext, error)
	// ListPendingSettlement returns completed payments with no payout row, oldest first.
	ListPendingSettlement(ctx context.Context, limit int) ([]model.PendingPayment, error)
	ServiceFeePercent(ctx context.Context, serviceID int64) (*float64, error)
}

type PaymentsRepositoryImpl struct {
	db *sqlx.DB
}

func NewPaymentsRepository(db *sqlx.DB) *PaymentsRepositoryImpl {
	return &PaymentsRepositoryImpl{db: db}
}

var _ PaymentsRepository = (*PaymentsRepositoryImpl)(nil)

func (r *PaymentsRepositoryImpl) GetSettlementContext(ctx context.Context, tx *sqlx.Tx, paymentID int64) (*model.SettlementContext, error) {
	const q = `
		SELECT p.id       AS payment_id,
		       p.amount,
		       p.currency,
		       p.status   AS payment_status,
		       pr.id      AS provider_id,
		       pr.settlement_account_id,
		       s.id       AS service_id,
		       s.title    AS service_title,
		       s.platform_fee_percent
		  FROM payments p
		  JOIN providers pr ON pr.id = p.provider_id
		  LEFT JOIN services s ON s.id = p.service_id
		 WHERE p.id = ?
		 LIMIT 1
	`
	var sc model.SettlementContext
	var err error
	if tx != nil {
		err = tx.GetContext(ctx, &sc, q, paymentID)
	} else {
		err = r.db.GetContext(ctx, &sc, q, paymentID)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (r *PaymentsRepositoryImpl) ListPendingSettlement(ctx context.Context, limit int) ([]model.PendingPayment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows := []model.PendingPayment{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT p.id, p.provider_id, p.amount, COALESCE(p.completed_at, p.created_at) AS completed_at
		  FROM payments p
		 WHERE p.status = 'completed'
		   AND NOT EXISTS (SELECT 1 FROM payouts po WHERE po.payment_id = p.id)
		 ORDER BY completed_at ASC, p.id ASC
		 LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PaymentsRepositoryImpl) ServiceFeePercent(ctx context.Context, serviceID int64) (*float64, error) {
	var pct sql.NullFloat64
	err := r.db.GetContext(ctx, &pct, `SELECT platform_fee_percent FROM services WHERE id = ? LIMIT 1`, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !pct.Valid {
		return nil, nil
	}
	return &pct.Float64, nil
}
