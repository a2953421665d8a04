package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/orbits/am"
	"github.com/teranos/orbits/cmd/orbits/commands"
	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/logger"
)

var rootCmd = &cobra.Command{
	Use:   "orbits",
	Short: "orbits - Versioned orbits and spheres over an append-only record store",
	Long: `orbits - Versioned orbits and spheres over an append-only record store.

Every change to an orbit appends an immutable record; secondary edges keep
sphere listings, name search and the parent/child hierarchy pointed at the
latest version.

Available commands:
  am      - Manage orbits configuration ("I am")
  sphere  - Create and list spheres
  orbit   - Create, update, delete, search and browse orbits
  db      - Inspect the orbits database

Examples:
  orbits am show                          # Show current configuration
  orbits sphere create --name Health      # Create a sphere
  orbits orbit create --name Running --sphere <id>
  orbits orbit tree <id>                  # Show an orbit's hierarchy
  orbits db stats                         # Show database statistics`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := am.GetViper()
		for key, flag := range map[string]string{
			"agent.name":      "as",
			"database.path":   "db",
			"database.driver": "driver",
		} {
			if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return errors.Wrapf(err, "failed to bind --%s", flag)
			}
		}

		// Skip for commands whose output is the configuration itself
		if cmd.Name() == "show" {
			return nil
		}

		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs := false
		if cfg, err := am.Load(); err == nil {
			jsonLogs = cfg.Log.JSON
		}
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().String("as", "", "Act as this agent (overrides agent.name)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides database.path)")
	rootCmd.PersistentFlags().String("driver", "", "Storage driver: sqlite or badger (overrides database.driver)")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.SphereCmd)
	rootCmd.AddCommand(commands.OrbitCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
