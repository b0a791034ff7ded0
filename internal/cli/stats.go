package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vincentbai/pagebeacon/internal/database"
	"github.com/vincentbai/pagebeacon/internal/models"
)

// Stats is the output of the stats command.
type Stats struct {
	Counts map[string]int64 `json:"counts"`
	Recent []RecentEvent    `json:"recent,omitempty"`
}

// RecentEvent is a stored event as listed by stats --recent.
type RecentEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stored event counts per type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, rootOpts, recent)
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 0, "also list the N most recent events")
	return cmd
}

func runStats(cmd *cobra.Command, opts *RootOptions, recent int) error {
	path := opts.Config.Server.DatabasePath
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("database %q: %w", path, err)
	}

	db, err := database.NewDatabase(path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	counts, err := db.CountByType(ctx)
	if err != nil {
		return err
	}
	stats := Stats{Counts: counts}

	if recent > 0 {
		events, err := db.Recent(ctx, recent)
		if err != nil {
			return err
		}
		for _, e := range events {
			stats.Recent = append(stats.Recent, RecentEvent{ID: e.ID, Type: e.Type, Path: e.Path, Timestamp: e.TSISO})
		}
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	for _, eventType := range models.EventTypes {
		fmt.Fprintf(out, "%-18s %d\n", eventType, stats.Counts[eventType])
	}
	for _, e := range stats.Recent {
		fmt.Fprintf(out, "%s  %-18s /%s  %s\n", e.Timestamp, e.Type, e.Path, e.ID)
	}
	return nil
}
