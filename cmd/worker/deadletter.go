package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/payout-engine/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var deadLetterCmd = &cobra.Command{
	Use:   "deadletter",
	Short: "Replay failed payout records that could not be written",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, log, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		defer func() { _ = log.Sync() }()

		w := worker.NewDeadLetterReplayer(a.DeadLetter, a.Settlement, cfg.Settlement.DeadLetterEvery, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("dead letter replayer started",
			zap.String("key", cfg.Settlement.DeadLetterKey),
			zap.Duration("every", cfg.Settlement.DeadLetterEvery),
		)
		return w.Run(ctx)
	},
}
