package worker

import (
	"fmt"

	"github.com/jmehdipour/payout-engine/internal/app"
	"github.com/jmehdipour/payout-engine/internal/config"
	"github.com/jmehdipour/payout-engine/internal/logger"
	"github.com/jmehdipour/payout-engine/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewWorkerCmd returns the parent "worker" command.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background workers",
	}
	// attach subcommands
	cmd.AddCommand(settleCmd)
	cmd.AddCommand(paymentsCmd)
	cmd.AddCommand(deadLetterCmd)

	return cmd
}

// bootstrap loads config from the root --config flag and builds the app.
func bootstrap(cmd *cobra.Command) (config.Config, *app.App, *zap.Logger, error) {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg.Log.Level)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	a, err := app.New(cfg, log)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, a, log, nil
}
