package commands

import (
	"fmt"
	"maps"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/steamfetch/models"
	"github.com/aluiziolira/steamfetch/scraper"
)

func init() {
	rootCmd.AddCommand(fetchCmd, popularCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run the daily incremental campaign: resume list pages, enrich details within the daily quota, publish the snapshot.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		metrics := scraper.NewMetrics()
		shutdown := serveMetrics(cfg.MetricsAddr, metrics)
		defer shutdown()

		return finishRun(runDaily(cmd.Context(), cfg, metrics))
	},
}

var popularCmd = &cobra.Command{
	Use:   "popular",
	Short: "Publish the currently popular games with fresh details for the top entries.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		metrics := scraper.NewMetrics()
		shutdown := serveMetrics(cfg.MetricsAddr, metrics)
		defer shutdown()

		return finishRun(runPopular(cmd.Context(), cfg, metrics))
	},
}

func printRunSummary(result *models.RunResult) {
	t := newTable()
	t.SetTitle("steamfetch " + result.Mode)
	t.AppendRows([]table.Row{
		{"Stop reason", result.StopReason},
		{"Pages", fmt.Sprintf("%d → %d (%d fetched)", result.StartPage, result.LastPage, result.PagesFetched)},
		{"Games", fmt.Sprintf("%d (%d new)", result.TotalGames, result.NewGames)},
		{"Details", fmt.Sprintf("%d (%d fetched, %d skipped, %d failed)", result.TotalDetails, result.DetailsFetched, result.DetailsSkipped, result.DetailsFailed)},
		{"Daily quota", fmt.Sprintf("%d/%d", result.DailyDetails, result.DailyLimit)},
		{"Requests", result.Stats.Requests},
		{"Retries", result.Stats.Retries},
		{"Success rate", percent(result.Stats.SuccessRate)},
		{"Duration", formatDuration(result.EndTime.Sub(result.StartTime))},
	})
	for _, kind := range slices.Sorted(maps.Keys(result.ErrorsByKind)) {
		t.AppendRow(table.Row{"Errors: " + kind, result.ErrorsByKind[kind]})
	}
	for _, reason := range slices.Sorted(maps.Keys(result.ValidationDrops)) {
		t.AppendRow(table.Row{"Dropped: " + reason, result.ValidationDrops[reason]})
	}
	if n := len(result.FailedTargets); n > 0 {
		t.AppendRow(table.Row{"Failed targets", n})
	}
	t.Render()
}
