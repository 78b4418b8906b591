package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Queue holds failure records that could not be written to the payouts table.
type Queue interface {
	Push(ctx context.Context, p *model.Payout) error
}

type RedisQueue struct {
	rdb *redis.Client
	key string
	log *zap.Logger
}

var _ Queue = (*RedisQueue)(nil)

func NewRedisQueue(rdb *redis.Client, key string, log *zap.Logger) *RedisQueue {
	if key == "" {
		key = "payouts:failed"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisQueue{rdb: rdb, key: key, log: log}
}

func (q *RedisQueue) Push(ctx context.Context, p *model.Payout) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, q.key, b).Err()
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// Drain pops records and hands them to fn until the list is empty.
// A record fn rejects goes back to the tail and draining stops; the count of
// records handled successfully is returned.
func (q *RedisQueue) Drain(ctx context.Context, fn func(context.Context, *model.Payout) error) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		raw, err := q.rdb.LPop(ctx, q.key).Bytes()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}

		var p model.Payout
		if err := json.Unmarshal(raw, &p); err != nil {
			// unreadable entries are dropped, nothing can replay them
			q.log.Error("dead letter: bad record dropped", zap.Error(err), zap.ByteString("raw", raw))
			continue
		}

		if err := fn(ctx, &p); err != nil {
			// the record is off the list now; put it back even when ctx is done
			if perr := q.rdb.RPush(context.WithoutCancel(ctx), q.key, raw).Err(); perr != nil {
				q.log.Error("dead letter: requeue failed",
					zap.Int64("payment_id", p.PaymentID), zap.Error(perr))
			}
			return n, fmt.Errorf("replay payment %d: %w", p.PaymentID, err)
		}
		n++
	}
}
