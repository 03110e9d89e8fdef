package commands

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/steamfetch/pipeline"
	"github.com/aluiziolira/steamfetch/search"
	"github.com/aluiziolira/steamfetch/snapshot"
)

var (
	indexPopular bool
	searchLimit  int
)

func init() {
	indexCmd.Flags().BoolVar(&indexPopular, "popular", false, "rebuild from popular-games.json instead of steamspy-games.json")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum results")
	rootCmd.AddCommand(indexCmd, searchCmd)
}

func layout(popular bool) snapshot.Layout {
	if popular {
		return snapshot.PopularLayout
	}
	return snapshot.DailyLayout
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the search index and metadata from the published list and detail files.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store := snapshot.NewFileStore(cfg.DataDir, layout(indexPopular))
		bundle, err := store.Load()
		if err != nil {
			return err
		}
		meta, found, err := store.LoadMetadata()
		if err != nil {
			return err
		}
		if !found {
			meta.Mode = pipeline.ModeDaily
			if indexPopular {
				meta.Mode = pipeline.ModePopular
			}
		}
		bundle.Metadata = meta
		bundle.Index = search.BuildIndex(bundle.Summaries, bundle.Details)
		bundle.Finalize(time.Now())

		if err := store.WriteBundle(cmd.Context(), bundle); err != nil {
			return err
		}
		if err := store.Validate(); err != nil {
			return fmt.Errorf("validate snapshot: %w", err)
		}
		slog.Info("search index rebuilt",
			slog.String("file", store.Path(store.Layout().Index)),
			slog.Int("entries", len(bundle.Index)),
		)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Query the published search index by substring, tag or fuzzy name match.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		index, err := snapshot.NewFileStore(cfg.DataDir, snapshot.DailyLayout).LoadIndex()
		if err != nil {
			return err
		}
		hits := search.Query(index, strings.Join(args, " "), searchLimit)
		if len(hits) == 0 {
			fmt.Println("no matches")
			return nil
		}

		t := newTable()
		t.AppendHeader(table.Row{"Steam ID", "Name", "Developer", "Tags", "Match"})
		for _, h := range hits {
			match := "exact"
			if !h.Exact {
				match = fmt.Sprintf("fuzzy %.2f", h.Score)
			}
			t.AppendRow(table.Row{h.Entry.SteamID, h.Entry.Name, h.Entry.Developer, strings.Join(h.Entry.Tags, ", "), match})
		}
		t.Render()
		return nil
	},
}
