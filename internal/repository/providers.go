package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

type ProvidersRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Provider, error)
	SetSettlementAccount(ctx context.Context, id int64, accountID string) error
}

type ProvidersRepositoryImpl struct {
	db *sqlx.DB
}

func NewProvidersRepository(db *sqlx.DB) *ProvidersRepositoryImpl {
	return &ProvidersRepositoryImpl{db: db}
}

var _ ProvidersRepository = (*ProvidersRepositoryImpl)(nil)

func (r *ProvidersRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Provider, error) {
	var p model.Provider
	err := r.db.GetContext(ctx, &p, `
		SELECT id, name, email, is_verified, settlement_account_id, created_at, updated_at
		  FROM providers
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProvidersRepositoryImpl) SetSettlementAccount(ctx context.Context, id int64, accountID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE providers
		   SET settlement_account_id = ?, updated_at = NOW()
		 WHERE id = ?
	`, accountID, id)
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
}
