package main

import (
	"fmt"

	"github.com/jamesainslie/dexsync/pkg/dexsync/blobstore"
	"github.com/jamesainslie/dexsync/pkg/dexsync/resource"
	"github.com/jamesainslie/dexsync/pkg/dexsync/snapshot"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [resource...]",
	Short: "Create data directories and empty manifests",
	Long: `Create the data directory for each resource and write an unpublished
manifest (empty version, null snapshot URL) where none exists.

Existing manifests are left untouched. The first sync of an initialized
resource fetches every entry in the catalog.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

// runInit bootstraps manifests for the requested resources.
func runInit(cmd *cobra.Command, args []string) error {
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

	for _, def := range defs {
		created, err := snapshot.Bootstrap(store, def)
		if err != nil {
			return fmt.Errorf("failed to initialize %s: %w", def.Name, err)
		}
		if created {
			printInfo("Created %s", def.ManifestPath())
		} else {
			printInfo("Exists  %s", def.ManifestPath())
		}
	}
	return nil
}
