package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/steamfetch/pricing"
	"github.com/aluiziolira/steamfetch/scraper"
)

func init() {
	rootCmd.AddCommand(pricesCmd)
}

var pricesCmd = &cobra.Command{
	Use:   "prices <steam id>...",
	Short: "Look up current store prices for one or more apps.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := pricing.OptionsFromConfig(cfg)
		opts.Metrics = scraper.NewMetrics()
		svc, err := pricing.New(opts)
		if err != nil {
			return err
		}

		quotes := svc.Prices(cmd.Context(), args)

		t := newTable()
		t.AppendHeader(table.Row{"Steam ID", "Price", "Original", "Discount", "Currency", "Status"})
		for _, id := range args {
			q, ok := quotes[id]
			if !ok {
				continue
			}
			delete(quotes, id)
			if q == nil {
				t.AppendRow(table.Row{id, "-", "-", "-", "-", "unavailable"})
				continue
			}
			status := "regular"
			switch {
			case q.IsFree:
				status = "free"
			case q.OnSale:
				status = "on sale"
			}
			t.AppendRow(table.Row{
				id,
				fmt.Sprintf("%.2f", q.Price),
				fmt.Sprintf("%.2f", q.OriginalPrice),
				fmt.Sprintf("%d%%", q.DiscountPercent),
				q.Currency,
				status,
			})
		}
		t.Render()
		return nil
	},
}
