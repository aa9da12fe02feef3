package main

import (
	"github.com/spf13/cobra"

	"github.com/skridlevsky/commitboard/internal/activity"
)

var (
	pageNum   int
	pageLimit int
	noCache   bool
)

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(commitsCmd)

	statsCmd.Flags().BoolVar(&noCache, "fresh", false, "bypass the stats cache")
	commitsCmd.Flags().IntVar(&pageNum, "page", 1, "page number (1-based)")
	commitsCmd.Flags().IntVar(&pageLimit, "limit", activity.DefaultPageLimit, "items per page (max 50)")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the aggregated dashboard payload as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var payload activity.StatsPayload
		if noCache {
			payload, err = a.Aggregator.ComputeStats(cmd.Context())
		} else {
			payload, err = a.Aggregator.Stats(cmd.Context())
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), payload)
	},
}

var commitsCmd = &cobra.Command{
	Use:   "commits",
	Short: "Print one page of the public commit feed as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		page, err := a.Aggregator.CommitPage(cmd.Context(), pageNum, pageLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), page)
	},
}
