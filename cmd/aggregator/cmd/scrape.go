package cmd

import (
	"fmt"
	"os"

	"github.com/kapu/roster-aggregator-go/internal/app"
	"github.com/kapu/roster-aggregator-go/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	scrapeSource   string
	scrapeDivision string
)

func init() {
	scrapeCmd.Flags().StringVar(&scrapeSource, "source", "", "configured source name")
	scrapeCmd.Flags().StringVar(&scrapeDivision, "division", "", "division tag, e.g. INTERNATIONAL or CANADIAN")
	scrapeCmd.MarkFlagsOneRequired("source", "division")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrapes a single source and prints its teams, without analysis or persistence.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		src, err := cfg.FindSource(scrapeSource, scrapeDivision)
		if err != nil {
			return err
		}

		container, err := app.BuildScrape(cfg, logger)
		if err != nil {
			return err
		}
		defer container.Close()

		teams, runErr := container.Controller.RunSingleSource(cmd.Context(), src)
		container.PushMetrics(cmd.Context())
		if runErr != nil {
			return fmt.Errorf("scrape %s failed: %w", src.Name, runErr)
		}

		report.RenderTeams(os.Stdout, src.Name, teams)
		logger.Info("Scrape finished", zap.String("source", src.Name), zap.Int("teams", len(teams)))
		return nil
	},
}
