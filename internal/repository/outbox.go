package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

const (
	TopicPayoutCompleted = "payouts.completed"
	TopicPayoutFailed    = "payouts.failed"
)

// OutboxRepository defines persistence methods for the outbox table.
type OutboxRepository interface {
	// Insert writes a single outbox event. If tx is nil, it will open/commit
	// an internal transaction; otherwise it uses the given tx.
	Insert(ctx context.Context, tx *sqlx.Tx, aggregate, aggregateID, topic string, payload []byte) error
	// InsertJSON marshals payload and inserts it.
	InsertJSON(ctx context.Context, tx *sqlx.Tx, aggregate, aggregateID, topic string, payload any) error
	// ListByAggregate returns the events of one aggregate, oldest first.
	ListByAggregate(ctx context.Context, aggregate, aggregateID string) ([]model.OutboxEvent, error)
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs an OutboxRepositoryImpl.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

// Insert adds an event row to outbox. A CDC connector publishes it to Kafka
// based on the `topic` column.
func (r *OutboxRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, aggregate, aggregateID, topic string, payload []byte) error {
	const q = `
		INSERT INTO outbox (aggregate, aggregate_id, topic, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, NOW(), NOW())
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, aggregate, aggregateID, topic, payload)

		return err
	})
}

func (r *OutboxRepositoryImpl) InsertJSON(ctx context.Context, tx *sqlx.Tx, aggregate, aggregateID, topic string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	return r.Insert(ctx, tx, aggregate, aggregateID, topic, b)
}

func (r *OutboxRepositoryImpl) ListByAggregate(ctx context.Context, aggregate, aggregateID string) ([]model.OutboxEvent, error) {
	const q = `
		SELECT id, aggregate, aggregate_id, topic, payload, created_at, updated_at
		  FROM outbox
		 WHERE aggregate = ? AND aggregate_id = ?
		 ORDER BY id
	`
	rows := []model.OutboxEvent{}
	if err := r.db.SelectContext(ctx, &rows, q, aggregate, aggregateID); err != nil {
		return nil, err
	}
	return rows, nil
}
