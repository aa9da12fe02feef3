package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/skridlevsky/commitboard/internal/app"
	"github.com/skridlevsky/commitboard/internal/config"
	"github.com/skridlevsky/commitboard/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "statsctl",
	Short: "Inspect the hackathon commit dashboard",
	Long: `statsctl reads the same configuration as the server (environment or .env)
and runs individual pieces of the dashboard: migrations, the stats aggregate,
feed pages, the content renderer and the Discord thread listing.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file if it exists
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and builds a logger writing to stderr
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	log := logging.New(logLevel, cfg.Env)
	log.SetOutput(os.Stderr)
	return cfg, log, nil
}

// openApp wires every component. The caller must Close the result.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, log)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
