package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/dexsync/pkg/dexsync/blobstore"
	"github.com/jamesainslie/dexsync/pkg/dexsync/prune"
	"github.com/jamesainslie/dexsync/pkg/dexsync/resource"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune [resource...]",
	Short: "Remove snapshot files no manifest points at",
	Long: `Remove dated snapshot files that the resource manifest no longer
references, along with temp files left behind by interrupted writes.

A sync retires the superseded snapshot itself; prune cleans up after runs
whose retirement failed. Resources without a manifest are skipped.`,
	RunE: runPrune,
}

var pruneDryRun bool

func init() {
	pruneCmd.Flags().BoolVarP(&pruneDryRun, "dry-run", "d", false, "list orphaned files without deleting them")
	rootCmd.AddCommand(pruneCmd)
}

// runPrune finds and removes orphaned snapshot files.
func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	defs, err := resource.Lookup(locales(cfg), args...)
	if err != nil {
		return err
	}

	store, err := blobstore.NewDir(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open data directory: %w", err)
	}

	res, err := prune.New(cfg.DataDir, store).Run(defs, pruneDryRun)
	if res != nil {
		printPruneResult(res)
	}
	if err != nil {
		return fmt.Errorf("prune incomplete: %w", err)
	}
	return nil
}

func printPruneResult(res *prune.Result) {
	skipped := make([]string, 0, len(res.Skipped))
	for name := range res.Skipped {
		skipped = append(skipped, name)
	}
	sort.Strings(skipped)
	for _, name := range skipped {
		printInfo("Skipped %s: %v", name, res.Skipped[name])
	}

	if len(res.Orphans) == 0 {
		printInfo("No orphaned snapshot files.")
		return
	}

	for _, o := range res.Orphans {
		printInfo("  %-10s  %10s  %s", o.Resource, humanize.Bytes(uint64(o.Size)), o.Path)
	}
	if res.DryRun {
		printInfo("Would remove %d files (%s). Run without --dry-run to delete them.",
			len(res.Orphans), humanize.Bytes(uint64(res.Bytes())))
		return
	}
	printInfo("Removed %d of %d files (%s).", res.Removed, len(res.Orphans), humanize.Bytes(uint64(res.Bytes())))
}
