package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kapu/roster-aggregator-go/internal/app"
	"github.com/kapu/roster-aggregator-go/internal/constants"
	"github.com/kapu/roster-aggregator-go/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the full aggregation over every configured source.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		logger.Info("Roster aggregator starting",
			zap.Int("sources", len(cfg.Sources)),
			zap.String("log_level", cfg.Logging.Level),
		)

		buildCtx, buildCancel := context.WithTimeout(cmd.Context(), constants.TimeoutDefaults.Startup)
		container, err := app.Build(buildCtx, cfg, logger)
		buildCancel()
		if err != nil {
			logger.Error("Failed to assemble application services", zap.Error(err))
			return err
		}
		defer container.Close()

		result, runErr := container.Controller.Run(cmd.Context())
		report.RenderRun(os.Stdout, result)
		container.PushMetrics(context.WithoutCancel(cmd.Context()))

		if runErr != nil {
			return fmt.Errorf("aggregation failed: %w", runErr)
		}
		return nil
	},
}
