package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/grapher/internal/backup"
	"github.com/alfredjeanlab/grapher/internal/store"
)

var chartsCmd = &cobra.Command{
	Use:   "charts",
	Short: "Inspect stored charts",
}

var chartsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List charts with their config version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		charts, err := s.ListCharts(cmd.Context())
		if err != nil {
			return fmt.Errorf("list charts: %w", err)
		}
		rows := chartRows(charts)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rows)
		}
		return printChartTable(cmd.OutOrStdout(), rows)
	},
}

var chartsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one chart and its config keys",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chart id %q", args[0])
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		chart, err := s.GetChart(cmd.Context(), id)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), chart)
		}
		return printChart(cmd.OutOrStdout(), chart)
	},
}

var chartsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSONL snapshot of every chart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if out == "" || out == "-" {
			n, err := backup.ExportJSONL(cmd.Context(), s, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			logger.Info("exported charts", "charts", n)
			return nil
		}

		n, err := exportToFile(cmd.Context(), s, out)
		if err != nil {
			return err
		}
		logger.Info("exported charts", "charts", n, "out", out)
		return nil
	},
}

// exportToFile writes the export to path. A failed close is reported, since
// it can leave a truncated file behind.
func exportToFile(ctx context.Context, s store.Store, path string) (n int, err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return backup.ExportJSONL(ctx, s, f)
}

func init() {
	chartsExportCmd.Flags().StringP("out", "o", "", "output file (default stdout)")

	chartsCmd.AddCommand(chartsListCmd)
	chartsCmd.AddCommand(chartsShowCmd)
	chartsCmd.AddCommand(chartsExportCmd)
}
