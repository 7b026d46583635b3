package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/dexsync/pkg/dexsync/config"
	"github.com/jamesainslie/dexsync/pkg/dexsync/history"
	"github.com/jamesainslie/dexsync/pkg/dexsync/resource"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync run history",
	Long: `View the history of sync runs.

Every 'dexsync sync' records one entry per resource with the run outcome,
how many entries were added or failed, and which snapshot was published.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific run",
	Long:  `Display the full report of a recorded sync run by its ID.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit    int
	historyResource string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")
	historyCmd.Flags().StringVarP(&historyResource, "resource", "r", "", "only show runs of this resource")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistory opens the configured history store.
func openHistory() (*config.Config, *history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	h, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}
	return cfg, h, nil
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, args []string) error {
	cfg, h, err := openHistory()
	if err != nil {
		return err
	}
	defer h.Close()

	filter := history.Filter{Limit: historyLimit}
	if historyResource != "" {
		defs, err := resource.Lookup(locales(cfg), historyResource)
		if err != nil {
			return err
		}
		filter.Resource = defs[0].Name
	}

	entries, err := h.List(filter)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'dexsync sync' to record a sync run.")
		return nil
	}

	// Print header
	fmt.Printf("\n%-36s  %-10s  %-10s  %-8s  %-8s  %s\n", "ID", "RESOURCE", "OUTCOME", "ADDED", "FAILED", "WHEN")
	fmt.Println(strings.Repeat("-", 96))

	for _, entry := range entries {
		rep := entry.Report
		fmt.Printf("%-36s  %-10s  %-10s  %-8d  %-8d  %s\n",
			entry.ID,
			rep.Resource,
			rep.Outcome,
			rep.Added,
			rep.Failed,
			humanize.Time(entry.Timestamp),
		)
	}

	fmt.Println(strings.Repeat("-", 96))
	fmt.Printf("\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Println("Use 'dexsync history show <id>' for details on a specific run.")

	return nil
}

// runHistoryShow displays the report of a specific run.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	_, h, err := openHistory()
	if err != nil {
		return err
	}
	defer h.Close()

	entry, err := h.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}
	rep := entry.Report

	fmt.Println("\nRun Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:         %s\n", entry.ID)
	fmt.Printf("Timestamp:  %s\n", entry.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Resource:   %s\n", rep.Resource)
	fmt.Printf("Outcome:    %s\n", rep.Outcome)
	if rep.Reason != "" {
		fmt.Printf("Reason:     %s\n", rep.Reason)
	}
	fmt.Printf("Duration:   %s\n", rep.Duration.Round(time.Millisecond))
	fmt.Printf("Known:      %d\n", rep.Known)
	if rep.Probe != nil {
		fmt.Printf("Probe:      %d\n", *rep.Probe)
	} else {
		fmt.Printf("Probe:      unknown\n")
	}
	fmt.Printf("Listed:     %d\n", rep.Listed)
	fmt.Printf("Missing:    %d\n", rep.Missing)
	fmt.Printf("Added:      %d\n", rep.Added)
	fmt.Printf("Failed:     %d\n", rep.Failed)
	fmt.Printf("Total:      %d\n", rep.Total)

	if rep.SnapshotPath != "" {
		fmt.Printf("Snapshot:   %s\n", rep.SnapshotPath)
	}
	if rep.Retired != "" {
		fmt.Printf("Retired:    %s\n", rep.Retired)
	}
	if rep.RetireError != "" {
		fmt.Printf("Retire err: %s\n", rep.RetireError)
	}
	if rep.Error != "" {
		fmt.Printf("Error:      %s\n", rep.Error)
	}

	return nil
}

// runHistoryClean removes old history entries.
func runHistoryClean(cmd *cobra.Command, args []string) error {
	cfg, h, err := openHistory()
	if err != nil {
		return err
	}
	defer h.Close()

	retentionDays := cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := h.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}
