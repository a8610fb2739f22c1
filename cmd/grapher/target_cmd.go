package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/grapher/internal/config"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage named database targets",
	// Target subcommands only touch the local targets file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var targetAddCmd = &cobra.Command{
	Use:   "add <name> <database-url>",
	Short: "Add or update a named target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, dbURL := args[0], args[1]
		driver, _ := cmd.Flags().GetString("driver")
		natsURL, _ := cmd.Flags().GetString("nats")

		if driver != "" && driver != config.DriverPostgres && driver != config.DriverSQLite {
			return fmt.Errorf("unsupported driver %q", driver)
		}
		if driver == "" {
			if _, _, err := inferDriver(dbURL); err != nil {
				return err
			}
		}

		tc, err := loadTargetsConfig()
		if err != nil {
			return err
		}
		tc.Targets[name] = Target{DatabaseURL: dbURL, Driver: driver, NATSURL: natsURL}
		if err := saveTargetsConfig(tc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "target %q added (%s)\n", name, redactURL(dbURL))
		return nil
	},
}

var targetRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		tc, err := loadTargetsConfig()
		if err != nil {
			return err
		}
		if _, ok := tc.Targets[name]; !ok {
			return fmt.Errorf("target %q not found", name)
		}
		delete(tc.Targets, name)
		if tc.Active == name {
			tc.Active = ""
		}
		if err := saveTargetsConfig(tc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "target %q removed\n", name)
		return nil
	},
}

var targetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all targets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := loadTargetsConfig()
		if err != nil {
			return err
		}
		if len(tc.Targets) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no targets configured")
			return nil
		}
		names := make([]string, 0, len(tc.Targets))
		for name := range tc.Targets {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tDATABASE\tDRIVER")
		for _, name := range names {
			t := tc.Targets[name]
			marker := "  "
			if name == tc.Active {
				marker = "* "
			}
			driver := t.Driver
			if driver == "" {
				driver, _, _ = inferDriver(t.DatabaseURL)
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\n", marker, name, redactURL(t.DatabaseURL), driver)
		}
		return w.Flush()
	},
}

var targetUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		tc, err := loadTargetsConfig()
		if err != nil {
			return err
		}
		if _, ok := tc.Targets[name]; !ok {
			return fmt.Errorf("target %q not found", name)
		}
		tc.Active = name
		if err := saveTargetsConfig(tc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active target set to %q\n", name)
		return nil
	},
}

var targetShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show details for a target (defaults to active)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := loadTargetsConfig()
		if err != nil {
			return err
		}

		name := tc.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no active target; specify a name or run 'grapher target use <name>'")
		}

		t, ok := tc.Targets[name]
		if !ok {
			return fmt.Errorf("target %q not found", name)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		active := ""
		if name == tc.Active {
			active = " (active)"
		}
		fmt.Fprintf(w, "name:\t%s%s\n", name, active)
		fmt.Fprintf(w, "database_url:\t%s\n", redactURL(t.DatabaseURL))
		if t.Driver != "" {
			fmt.Fprintf(w, "driver:\t%s\n", t.Driver)
		}
		if t.NATSURL != "" {
			fmt.Fprintf(w, "nats_url:\t%s\n", t.NATSURL)
		}
		return w.Flush()
	},
}

func init() {
	targetAddCmd.Flags().String("driver", "", "database driver (postgres or sqlite); inferred from the URL when empty")
	targetAddCmd.Flags().String("nats", "", "NATS URL for migration events")

	targetCmd.AddCommand(targetAddCmd)
	targetCmd.AddCommand(targetRemoveCmd)
	targetCmd.AddCommand(targetListCmd)
	targetCmd.AddCommand(targetUseCmd)
	targetCmd.AddCommand(targetShowCmd)
}
