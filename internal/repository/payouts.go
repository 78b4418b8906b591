package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

// HistoryReader serves paginated payout history; implemented by MySQL and ClickHouse.
type HistoryReader interface {
	ListByProvider(ctx context.Context, q model.HistoryQuery) ([]model.Payout, error)
	CountByProvider(ctx context.Context, q model.HistoryQuery) (int, error)
}

type PayoutsRepository interface {
	HistoryReader

	// GetActiveByPaymentID returns the pending/processing/completed row of a payment, or nil.
	GetActiveByPaymentID(ctx context.Context, tx *sqlx.Tx, paymentID int64) (*model.Payout, error)
	GetByID(ctx context.Context, id string) (*model.Payout, error)
	// Insert writes a payout row; a nil tx runs in its own transaction.
	Insert(ctx context.Context, tx *sqlx.Tx, p *model.Payout) error
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.PayoutStatus) error
	GetReceipt(ctx context.Context, id string) (*model.Receipt, error)
}

type PayoutsRepositoryImpl struct {
	db *sqlx.DB
}

func NewPayoutsRepository(db *sqlx.DB) *PayoutsRepositoryImpl {
	return &PayoutsRepositoryImpl{db: db}
}

var _ PayoutsRepository = (*PayoutsRepositoryImpl)(nil)

const payoutColumns = `id, provider_id, payment_id, external_transfer_id, amount, platform_fee,
	original_amount, currency, status, idempotency_key, payout_date, description,
	failure_reason, created_at, updated_at`

func (r *PayoutsRepositoryImpl) GetActiveByPaymentID(ctx context.Context, tx *sqlx.Tx, paymentID int64) (*model.Payout, error) {
	const q = `
		SELECT ` + payoutColumns + `
		  FROM payouts
		 WHERE payment_id = ? AND status IN ('pending', 'processing', 'completed')
		 ORDER BY created_at DESC
		 LIMIT 1
	`
	var p model.Payout
	var err error
	if tx != nil {
		err = tx.GetContext(ctx, &p, q, paymentID)
	} else {
		err = r.db.GetContext(ctx, &p, q, paymentID)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PayoutsRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Payout, error) {
	var p model.Payout
	err := r.db.GetContext(ctx, &p, `SELECT `+payoutColumns+` FROM payouts WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert stamps created_at/updated_at on p. A unique-key violation (the
// external transfer id, or a second active row for one payment) returns ErrDuplicate.
func (r *PayoutsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, p *model.Payout) error {
	const q = `
		INSERT INTO payouts
		    (id, provider_id, payment_id, external_transfer_id, amount, platform_fee,
		     original_amount, currency, status, idempotency_key, payout_date, description,
		     failure_reason, created_at, updated_at)
		VALUES
		    (:id, :provider_id, :payment_id, :external_transfer_id, :amount, :platform_fee,
		     :original_amount, :currency, :status, :idempotency_key, :payout_date, :description,
		     :failure_reason, :created_at, :updated_at)
	`
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	err := withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, q, p)
		return err
	})
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func (r *PayoutsRepositoryImpl) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.PayoutStatus) error {
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE payouts SET status = ?, updated_at = ? WHERE id = ?`,
			status.String(), time.Now().UTC(), id,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *PayoutsRepositoryImpl) ListByProvider(ctx context.Context, q model.HistoryQuery) ([]model.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE provider_id = ?`
	args := []any{q.ProviderID}

	if q.Status != "" {
		query += " AND status = ?"
		args = append(args, q.Status.String())
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, q.Limit, q.Offset)

	rows := []model.Payout{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PayoutsRepositoryImpl) CountByProvider(ctx context.Context, q model.HistoryQuery) (int, error) {
	query := `SELECT COUNT(*) FROM payouts WHERE provider_id = ?`
	args := []any{q.ProviderID}
	if q.Status != "" {
		query += " AND status = ?"
		args = append(args, q.Status.String())
	}

	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}

// GetReceipt joins a completed payout with its payment, both parties and the service.
func (r *PayoutsRepositoryImpl) GetReceipt(ctx context.Context, id string) (*model.Receipt, error) {
	var rc model.Receipt
	err := r.db.GetContext(ctx, &rc, `
		SELECT po.id          AS payout_id,
		       po.payment_id,
		       po.external_transfer_id,
		       po.payout_date,
		       po.original_amount,
		       po.platform_fee,
		       po.amount,
		       po.currency,
		       pr.id          AS provider_id,
		       pr.name        AS provider_name,
		       pr.email       AS provider_email,
		       c.id           AS customer_id,
		       c.name         AS customer_name,
		       c.email        AS customer_email,
		       s.title        AS service_title,
		       s.description  AS service_description
		  FROM payouts po
		  JOIN payments p   ON p.id = po.payment_id
		  JOIN providers pr ON pr.id = po.provider_id
		  JOIN customers c  ON c.id = p.customer_id
		  LEFT JOIN services s ON s.id = p.service_id
		 WHERE po.id = ? AND po.status = 'completed'
		 LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}
