package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/steamfetch/config"
	"github.com/aluiziolira/steamfetch/models"
	"github.com/aluiziolira/steamfetch/pipeline"
	"github.com/aluiziolira/steamfetch/scraper"
)

func init() {
	rootCmd.AddCommand(videosCmd)
}

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "Scroll the video site's home feed in a browser and append new videos to the video snapshot.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		metrics := scraper.NewMetrics()
		shutdown := serveMetrics(cfg.MetricsAddr, metrics)
		defer shutdown()

		result, err := runVideos(cmd.Context(), cfg, metrics)
		if result != nil && !result.StartTime.IsZero() {
			printVideoSummary(result)
		}
		if errors.Is(err, context.Canceled) {
			slog.Warn("interrupted, collected videos saved")
			return nil
		}
		if err != nil {
			return fmt.Errorf("video run failed: %w", err)
		}
		return nil
	},
}

// runVideos always uses the browser: the feed only renders with scripts.
func runVideos(ctx context.Context, c *config.Config, metrics *scraper.Metrics) (*models.VideoRunResult, error) {
	browserCfg := *c
	browserCfg.Mode = config.ModeBrowser

	endpoints := scraper.EndpointsFromConfig(&browserCfg)
	opts := browserOptions(&browserCfg)
	opts.Landing = endpoints.VideoFeed()
	browser, err := scraper.NewBrowserTransport(endpoints, opts)
	if err != nil {
		return nil, err
	}
	controller := scraper.NewController(browser, scraper.PolicyFromConfig(&browserCfg),
		scraper.WithMetrics(metrics),
		scraper.WithPacer(scraper.NewPacer(browserCfg.RequestDelay, nil)),
	)
	defer controller.Close()

	return pipeline.NewVideoCampaign(&browserCfg, controller, browser, pipeline.WithMetrics(metrics)).Run(ctx)
}

func printVideoSummary(result *models.VideoRunResult) {
	t := newTable()
	t.SetTitle("steamfetch videos")
	t.AppendRows([]table.Row{
		{"Stop reason", result.StopReason},
		{"Videos", fmt.Sprintf("%d (%d new)", result.TotalVideos, result.NewVideos)},
		{"Scrolls", result.Scrolls},
		{"Dropped cards", result.DroppedCards},
		{"Requests", result.Stats.Requests},
		{"Success rate", percent(result.Stats.SuccessRate)},
		{"Duration", formatDuration(result.EndTime.Sub(result.StartTime))},
	})
	t.Render()
}
