package cmd

import (
	"fmt"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"msgsort/internal/admincmd"
)

// statsCmd prints message counts and average confidence per category.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show message statistics per category",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		stats, err := appInstance.StatsService.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Total messages: %d\n", stats.Total)
		if len(stats.Categories) == 0 {
			return nil
		}

		rows := stats.Categories
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })

		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Category", "Messages", "Share", "Avg Confidence"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, row := range rows {
			share := 0.0
			if stats.Total > 0 {
				share = float64(row.Count) / float64(stats.Total) * 100
			}
			table.Append([]string{
				row.Category,
				fmt.Sprintf("%d", row.Count),
				fmt.Sprintf("%.1f%%", share),
				admincmd.FormatConfidence(row.AvgConfidence),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
