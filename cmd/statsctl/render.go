package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var previewWords int

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().IntVar(&previewWords, "words", 0, "truncate to roughly this many words before rendering (0 renders everything)")
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render Discord message markdown from stdin to sanitized HTML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.Renderer.Preview(cmd.Context(), string(input), previewWords)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}
