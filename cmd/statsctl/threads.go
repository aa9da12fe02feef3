package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(threadsCmd)
}

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List the forum's threads and its message count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		threads, ok := a.Resolver.Threads(cmd.Context()).Get()
		if !ok {
			return errors.New("thread listing unavailable")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tOWNER\tMESSAGES\tNAME")
		for _, t := range threads {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.ID, t.OwnerID, t.MessageCount, t.Name)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if count, ok := a.Resolver.MessageCount(cmd.Context()).Get(); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d threads, %d messages\n", len(threads), count)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d threads, message count unavailable\n", len(threads))
		}
		return nil
	},
}
