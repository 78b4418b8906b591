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

var settleOnce bool

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Sweep completed payments without a payout on the configured schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, log, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		defer func() { _ = log.Sync() }()

		w := worker.NewSettler(a.Settlement, cfg.Settlement.Schedule, cfg.Settlement.BatchSize, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if settleOnce {
			res := w.RunOnce(ctx)
			if res != nil {
				log.Info("settle sweep done",
					zap.Int("processed", res.Processed),
					zap.Int("succeeded", res.Succeeded),
					zap.Int("failed", res.Failed),
				)
			}
			return nil
		}

		return w.Run(ctx)
	},
}

func init() {
	settleCmd.Flags().BoolVar(&settleOnce, "once", false, "run a single sweep and exit")
}
