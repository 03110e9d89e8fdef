package commands

import (
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/steamfetch/checkpoint"
)

func init() {
	progressCmd.AddCommand(progressShowCmd, progressResetCmd)
	rootCmd.AddCommand(progressCmd)
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Inspect or reset the campaign checkpoint.",
}

var progressShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the checkpoint cursors and the daily quota.",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		store := checkpoint.NewStore(cfg.ProgressFile(), cfg.DailyDetailsLimit)
		if err := store.Load(); err != nil {
			return err
		}
		st := store.State()

		t := newTable()
		t.SetTitle(store.Path())
		t.AppendRows([]table.Row{
			{"Version", st.Version},
			{"Last page", st.LastPage},
			{"Last detail index", st.LastDetailIndex},
			{"Total games", st.TotalGames},
			{"Total details", st.TotalDetails},
			{"Daily details", st.DailyDetailsCount},
			{"Remaining today", store.RemainingQuota()},
			{"Day", st.LastDailyReset},
			{"Last updated", st.LastUpdated.Local().Format("2006-01-02 15:04:05")},
		})
		t.Render()
		return nil
	},
}

var progressResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Start the next run from the first page with a fresh daily quota.",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		store := checkpoint.NewStore(cfg.ProgressFile(), cfg.DailyDetailsLimit)
		if err := store.Load(); err != nil {
			return err
		}
		store.Reset()
		if err := store.Save(); err != nil {
			return err
		}
		slog.Info("progress reset", slog.String("path", store.Path()))
		return nil
	},
}
