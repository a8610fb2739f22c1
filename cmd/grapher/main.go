package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/grapher/internal/config"
	"github.com/alfredjeanlab/grapher/internal/ui"
)

var (
	databaseURL string
	targetName  string
	jsonOutput  bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "grapher",
	Short:         "Manage chart records and their data migrations",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

// setup loads the environment configuration and builds the logger shared by
// every command.
func setup(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
	if !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "database URL (overrides GRAPHER_DATABASE_URL and the active target)")
	rootCmd.PersistentFlags().StringVar(&targetName, "target", "", "named target to use instead of the active one")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(chartsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(targetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
