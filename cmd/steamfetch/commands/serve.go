package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/steamfetch/config"
	"github.com/aluiziolira/steamfetch/models"
	"github.com/aluiziolira/steamfetch/scraper"
)

var popularSchedule string

func init() {
	serveCmd.Flags().StringVar(&popularSchedule, "popular-schedule", "", "cron spec for the popular campaign (disabled when empty)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run campaigns on a cron schedule and expose Prometheus metrics.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		metrics := scraper.NewMetrics()
		shutdown := serveMetrics(cfg.MetricsAddr, metrics)
		defer shutdown()

		scheduler, err := newScheduler(ctx, cfg, metrics)
		if err != nil {
			return err
		}
		scheduler.Start()
		slog.Info("scheduler started", slog.String("schedule", cfg.Schedule), slog.String("popular_schedule", popularSchedule))

		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for the running campaign")
		<-scheduler.Stop().Done()
		return nil
	},
}

// newScheduler registers the campaigns. A tick is skipped while any campaign
// is still running; only one process may write the snapshot files at a time.
func newScheduler(ctx context.Context, c *config.Config, metrics *scraper.Metrics) (*cron.Cron, error) {
	logger := cronLogger{}
	scheduler := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)

	var running sync.Mutex
	job := func(name string, fn func(context.Context, *config.Config, *scraper.Metrics) (*models.RunResult, error)) func() {
		return func() {
			if !running.TryLock() {
				slog.Warn("campaign still running, tick skipped", slog.String("campaign", name))
				return
			}
			defer running.Unlock()

			result, err := fn(ctx, c, metrics)
			if err != nil {
				slog.Error("scheduled campaign failed", slog.String("campaign", name), slog.Any("error", err))
				return
			}
			slog.Info("scheduled campaign finished",
				slog.String("campaign", name),
				slog.String("stop_reason", result.StopReason),
				slog.Int("games", result.TotalGames),
				slog.Int("details_fetched", result.DetailsFetched),
			)
		}
	}

	if _, err := scheduler.AddFunc(c.Schedule, job("daily", runDaily)); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", c.Schedule, err)
	}
	if popularSchedule != "" {
		if _, err := scheduler.AddFunc(popularSchedule, job("popular", runPopular)); err != nil {
			return nil, fmt.Errorf("popular schedule %q: %w", popularSchedule, err)
		}
	}
	return scheduler, nil
}
