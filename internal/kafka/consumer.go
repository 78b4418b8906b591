package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int           // default 1KB
	MaxBytes       int           // default 10MB
	CommitInterval time.Duration // default 1s (0 = sync each msg)
	MaxWait        time.Duration // default 50ms
}

func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: no brokers")
	}
	if c.Topic == "" {
		return errors.New("kafka: empty topic")
	}
	if c.GroupID == "" {
		return errors.New("kafka: empty group id")
	}
	return nil
}

// Consumer is a thin wrapper around segmentio/kafka-go Reader.
type Consumer struct {
	r *kafka.Reader
}

func NewConsumerFromConfig(c Config) (*Consumer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	min := c.MinBytes
	if min <= 0 {
		min = 1 << 10 // 1KB
	}
	max := c.MaxBytes
	if max <= 0 {
		max = 10 << 20 // 10MB
	}
	ci := c.CommitInterval
	if ci <= 0 {
		ci = time.Second
	}
	mw := c.MaxWait
	if mw <= 0 {
		mw = 50 * time.Millisecond
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MinBytes:       min,
		MaxBytes:       max,
		CommitInterval: ci,
		MaxWait:        mw,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{r: r}, nil
}

type Message = kafka.Message

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, m Message) error {
	return c.r.CommitMessages(ctx, m)
}

func (c *Consumer) Lag() int64 { return c.r.Stats().Lag }

func (c *Consumer) Close() error { return c.r.Close() }

// DecodePaymentCompleted parses a payments.completed message. The payment id is
// taken from the body, or from the message key when the body omits it.
func DecodePaymentCompleted(m Message) (model.PaymentCompletedEnvelope, error) {
	var env model.PaymentCompletedEnvelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, fmt.Errorf("bad envelope json: %w", err)
	}
	if env.PaymentID <= 0 && len(m.Key) > 0 {
		if err := json.Unmarshal(m.Key, &env.PaymentID); err != nil {
			return env, fmt.Errorf("bad message key %q: %w", m.Key, err)
		}
	}
	if env.PaymentID <= 0 {
		return env, errors.New("envelope missing payment_id")
	}
	return env, nil
}
