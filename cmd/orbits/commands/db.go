package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/teranos/orbits/db"
	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/store"
	"github.com/teranos/orbits/sym"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Inspect the orbits database",
	Long: sym.DB + ` db — Inspect the orbits database

Examples:
  orbits db stats                 # Record, tombstone and edge counts
  orbits db stats --format json`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  "Display record counts by kind, tombstones, edges by tag and free disk space",
	RunE:  runDbStats,
}

var dbStatsFormat string

func init() {
	DbCmd.AddCommand(dbStatsCmd)
	dbStatsCmd.Flags().StringVarP(&dbStatsFormat, "format", "f", formatText, "Output format (text, json, yaml)")
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	svc, closeFn, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	backend, ok := svc.Env().Records.(store.Backend)
	if !ok {
		return errors.New("store does not report statistics")
	}
	stats, err := backend.Stats(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "failed to query storage stats")
	}

	w := cmd.OutOrStdout()
	if dbStatsFormat != formatText {
		return writeStructured(w, dbStatsFormat, stats)
	}

	fmt.Fprintf(w, "%s Database Statistics\n", sym.DB)
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Fprintf(w, "Driver:         %s\n", cfg.Database.Driver)
	fmt.Fprintf(w, "Location:       %s\n", cfg.GetDatabasePath())
	if free, err := db.FreeBytes(cfg.GetDatabasePath()); err == nil {
		fmt.Fprintf(w, "Free Space:     %d MB\n", free/(1024*1024))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Records:        %d\n", stats.Records)
	fmt.Fprintf(w, "  %s Orbits:      %d\n", sym.Orbit, stats.Orbits)
	fmt.Fprintf(w, "  %s Spheres:     %d\n", sym.Sphere, stats.Spheres)
	fmt.Fprintf(w, "Tombstones:     %d\n", stats.Tombstones)
	fmt.Fprintln(w)

	tags := make([]string, 0, len(stats.Edges))
	for tag := range stats.Edges {
		tags = append(tags, string(tag))
	}
	sort.Strings(tags)
	fmt.Fprintf(w, "%s Edges\n", sym.Edge)
	for _, tag := range tags {
		fmt.Fprintf(w, "  %-20s %d\n", tag, stats.Edges[store.Tag(tag)])
	}
	return nil
}
