package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/grapher/internal/backup"
	"github.com/alfredjeanlab/grapher/internal/migrate"
	"github.com/alfredjeanlab/grapher/internal/steps"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run and inspect chart data migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migration steps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("to")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		noBackup, _ := cmd.Flags().GetBool("no-backup")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		pub := newPublisher()
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Warn("closing event publisher", "err", err)
			}
		}()

		opts := migrate.Options{Target: target, DryRun: dryRun}
		if !noBackup && cfg.Backup.Enabled() {
			dests, err := backupDestinations(ctx, cfg.Backup)
			if err != nil {
				return err
			}
			opts.Backup = func(ctx context.Context, runID string) (*backup.Summary, error) {
				return backup.Snapshot(ctx, s, runID, dests, logger)
			}
		} else if !noBackup {
			logger.Info("no backup destination configured; running without a snapshot")
		}

		runner := migrate.NewRunner(s, steps.All(), pub, logger)
		res, runErr := runner.Up(ctx, opts)
		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), resultJSON(res, runErr)); err != nil {
				return err
			}
			return runErr
		}
		if res != nil {
			printRunResult(cmd.OutOrStdout(), res)
		}
		return runErr
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which steps are applied and which are pending",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		plan, err := migrate.NewRunner(s, steps.All(), nil, logger).Plan(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), statusJSON(plan))
		}
		return printStatusTable(cmd.OutOrStdout(), plan)
	},
}

var migrateStepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List registered steps in execution order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ordered, err := migrate.Order(steps.All())
		if err != nil {
			return fmt.Errorf("invalid step registry: %w", err)
		}
		if jsonOutput {
			rows := make([]map[string]any, 0, len(ordered))
			for _, s := range ordered {
				rows = append(rows, map[string]any{
					"name":        s.Name,
					"depends_on":  s.DependsOn,
					"schema":      s.Schema,
					"description": s.Description,
				})
			}
			return printJSON(cmd.OutOrStdout(), rows)
		}
		return printSteps(cmd.OutOrStdout(), ordered)
	},
}

func init() {
	migrateUpCmd.Flags().String("to", "", "apply only this step and the steps it depends on")
	migrateUpCmd.Flags().Bool("dry-run", false, "run steps without writing anything")
	migrateUpCmd.Flags().Bool("no-backup", false, "skip the chart snapshot before the run")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateStepsCmd)
}
