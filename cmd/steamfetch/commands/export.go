package commands

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/steamfetch/models"
	"github.com/aluiziolira/steamfetch/snapshot"
)

var (
	exportOut        string
	exportFromSQLite bool
)

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "game-details.csv", "CSV file to write")
	exportCmd.Flags().BoolVar(&exportFromSQLite, "from-sqlite", false, "read details from the SQLite mirror instead of the JSON snapshot")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the published game details as CSV.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var details []models.GameDetail
		if exportFromSQLite {
			if cfg.SQLitePath == "" {
				return errors.New("--from-sqlite needs --sqlite or sqlite_path")
			}
			mirror, err := snapshot.OpenSQLiteMirror(cmd.Context(), cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer mirror.Close()
			if details, err = mirror.Details(cmd.Context()); err != nil {
				return err
			}
		} else {
			bundle, err := snapshot.NewFileStore(cfg.DataDir, snapshot.DailyLayout).Load()
			if err != nil {
				return err
			}
			details = bundle.Details
		}

		if err := snapshot.ExportCSV(exportOut, details); err != nil {
			return err
		}
		slog.Info("details exported", slog.String("file", exportOut), slog.Int("rows", len(details)))
		return nil
	},
}
