package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/payout-engine/internal/kafka"
	"github.com/jmehdipour/payout-engine/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "Consume payments.completed events and settle each payment",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, log, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		defer func() { _ = log.Sync() }()

		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "payout-engine"
		}
		groupID = groupID + "-payments"

		consumer, err := kafka.NewConsumerFromConfig(kafka.Config{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          cfg.Kafka.PaymentsTopic,
			GroupID:        groupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		})
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		defer consumer.Close()

		w := worker.NewPaymentsConsumer(consumer, a.Settlement, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("payments consumer started",
			zap.String("topic", cfg.Kafka.PaymentsTopic),
			zap.String("group", groupID),
		)
		return w.Run(ctx)
	},
}
