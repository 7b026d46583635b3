package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jamesainslie/dexsync/pkg/dexsync/blobstore"
	"github.com/jamesainslie/dexsync/pkg/dexsync/catalog"
	"github.com/jamesainslie/dexsync/pkg/dexsync/config"
	"github.com/jamesainslie/dexsync/pkg/dexsync/fetcher"
	"github.com/jamesainslie/dexsync/pkg/dexsync/history"
	"github.com/jamesainslie/dexsync/pkg/dexsync/lock"
	"github.com/jamesainslie/dexsync/pkg/dexsync/logging"
	"github.com/jamesainslie/dexsync/pkg/dexsync/output"
	"github.com/jamesainslie/dexsync/pkg/dexsync/resource"
	"github.com/jamesainslie/dexsync/pkg/dexsync/snapshot"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var syncCmd = &cobra.Command{
	Use:   "sync [resource...]",
	Short: "Fetch missing entries and publish new snapshots",
	Long: `Sync brings each resource's local snapshot up to date with the catalog.

For every resource the remote count is probed first; when it does not exceed
the local entry count the run stops there. Otherwise the full listing is
compared with the snapshot and only the missing entries are fetched. Entries
that fail to fetch are left out and retried on the next run.

With no arguments every resource is synced, one after another. A resource
whose sync fails does not stop the others, but the exit status is non-zero.

Output formats:
  pretty  Styled table (default)
  plain   Tab-separated columns
  json    One JSON document
  jsonl   One JSON line per resource
  yaml    YAML document`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringP("output", "o", "pretty", "output format (pretty, plain, json, jsonl, yaml)")
	_ = viper.BindPFlag("output", syncCmd.Flags().Lookup("output"))

	rootCmd.AddCommand(syncCmd)
}

// runSync syncs the requested resources and prints a report.
func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	defs, err := resource.Lookup(locales(cfg), args...)
	if err != nil {
		return err
	}

	outFormat := viper.GetString("output")
	if outFormat == "" {
		outFormat = "pretty"
	}
	formatter, err := output.Get(outFormat)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", outFormat, output.Available())
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			printError("interrupted, finishing the current resource")
			cancel()
		case <-ctx.Done():
		}
	}()

	startTime := time.Now()
	reports, err := syncResources(ctx, cfg, defs)
	if err != nil {
		return err
	}
	recordHistory(cfg, reports)

	result := &output.Result{
		Reports:  reports,
		Source:   cfg.BaseURL,
		DataDir:  cfg.DataDir,
		Duration: time.Since(startTime),
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())

	if failed := result.Totals().Failed; failed > 0 {
		return fmt.Errorf("%d of %d resources failed to sync", failed, len(reports))
	}
	return nil
}

// newCatalog builds the catalog client from the http section of cfg.
func newCatalog(cfg *config.Config) (*catalog.Client, error) {
	return catalog.New(catalog.Options{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.HTTP.Timeout,
		RateLimit: cfg.HTTP.RateLimit,
		PageSize:  cfg.HTTP.PageSize,
		UserAgent: cfg.HTTP.UserAgent,
	})
}

// syncResources runs one engine per definition, in order. A fatal
// failure is recorded on that resource's report and the next resource
// still runs. Resources not started before ctx is cancelled are reported
// as failed.
func syncResources(ctx context.Context, cfg *config.Config, defs []resource.Definition) ([]*snapshot.Report, error) {
	store, err := blobstore.NewDir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}

	cat, err := newCatalog(cfg)
	if err != nil {
		return nil, err
	}
	f := fetcher.New(cat)

	reports := make([]*snapshot.Report, 0, len(defs))
	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			reports = append(reports, failedReport(&snapshot.Report{Resource: def.Name, StartedAt: time.Now()}, err))
			continue
		}
		printVerbose("Syncing %s from %s", def.Name, cfg.BaseURL+"/"+def.Endpoint)
		reports = append(reports, syncResource(ctx, cfg, store, cat, f, def))
	}
	return reports, nil
}

// syncResource syncs a single resource under its run lock.
func syncResource(ctx context.Context, cfg *config.Config, store blobstore.Store, cat snapshot.Catalog, f snapshot.Fetcher, def resource.Definition) *snapshot.Report {
	log := logging.Get("sync").With("resource", def.Name)

	l, err := lock.Acquire(filepath.Join(cfg.DataDir, def.Dir))
	if err != nil {
		log.Error("cannot take run lock", "err", err)
		return failedReport(&snapshot.Report{Resource: def.Name, StartedAt: time.Now()}, err)
	}
	defer func() {
		if err := l.Release(); err != nil {
			log.Warn("failed to release run lock", "path", l.Path(), "err", err)
		}
	}()

	engine := snapshot.New(def, store, cat, f, snapshot.Options{Width: cfg.Workers(def.Name)})
	report, err := engine.Sync(ctx)
	if err != nil {
		log.Error("sync failed", "err", err)
		return failedReport(report, err)
	}
	return report
}

func failedReport(r *snapshot.Report, err error) *snapshot.Report {
	r.Outcome = snapshot.OutcomeFailed
	r.Error = err.Error()
	return r
}

// recordHistory stores every report in the run history. Failures are
// logged and never fail the sync.
func recordHistory(cfg *config.Config, reports []*snapshot.Report) {
	if !cfg.History.Enabled {
		return
	}
	log := logging.Get("history")

	h, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Warn("history unavailable", "path", cfg.History.Path, "err", err)
		return
	}
	defer h.Close()

	for _, rep := range reports {
		entry, err := h.Record(rep)
		if err != nil {
			log.Warn("failed to record run", "resource", rep.Resource, "err", err)
			continue
		}
		log.Debug("recorded run", "id", entry.ID, "resource", rep.Resource, "outcome", rep.Outcome)
	}
}
