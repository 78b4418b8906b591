package model

import (
	"encoding/json"
	"time"
)

// OutboxEvent is a stored outbox row, read back for a payout's audit trail.
type OutboxEvent struct {
	ID          int64           `db:"id" json:"id"`
	Aggregate   string          `db:"aggregate" json:"aggregate"`       // "payout"
	AggregateID string          `db:"aggregate_id" json:"aggregate_id"` // payout ULID
	Topic       string          `db:"topic" json:"topic"`               // payouts.completed | payouts.failed
	Payload     json.RawMessage `db:"payload" json:"payload"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}
