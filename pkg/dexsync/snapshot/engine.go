package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/jamesainslie/dexsync/pkg/dexsync/blobstore"
	"github.com/jamesainslie/dexsync/pkg/dexsync/catalog"
	"github.com/jamesainslie/dexsync/pkg/dexsync/logging"
	"github.com/jamesainslie/dexsync/pkg/dexsync/pool"
	"github.com/jamesainslie/dexsync/pkg/dexsync/resource"
)

// VersionLayout formats snapshot versions.
const VersionLayout = "2006-01-02"

// Catalog is the remote listing used by the engine. *catalog.Client implements it.
type Catalog interface {
	ProbeCount(ctx context.Context, endpoint string) (catalog.Count, error)
	ListAll(ctx context.Context, endpoint string) ([]catalog.ListEntry, error)
}

// Fetcher fetches one entry. *fetcher.Fetcher implements it.
type Fetcher interface {
	FetchOne(ctx context.Context, def resource.Definition, name string) (resource.Record, error)
}

// Options configures an Engine.
type Options struct {
	// Width is the fetch pool width. Non-positive means pool.DefaultWidth.
	Width int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Logger defaults to the "sync" component logger.
	Logger *logging.Logger
}

// Engine synchronizes one resource.
type Engine struct {
	def     resource.Definition
	store   blobstore.Store
	catalog Catalog
	fetcher Fetcher
	width   int
	now     func() time.Time
	log     *logging.Logger
}

// New creates an engine for def.
func New(def resource.Definition, store blobstore.Store, cat Catalog, f Fetcher, opts Options) *Engine {
	if opts.Width < 1 {
		opts.Width = pool.DefaultWidth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Get("sync")
	}
	return &Engine{
		def:     def,
		store:   store,
		catalog: cat,
		fetcher: f,
		width:   opts.Width,
		now:     opts.Now,
		log:     opts.Logger.With("resource", def.Name),
	}
}

// Definition returns the resource this engine syncs.
func (e *Engine) Definition() resource.Definition {
	return e.def
}

type fetched struct {
	key string
	rec resource.Record
}

// Sync runs one synchronization. A non-nil error means nothing was
// published; the report still carries what was learned before the failure.
func (e *Engine) Sync(ctx context.Context) (*Report, error) {
	started := e.now()
	report := &Report{Resource: e.def.Name, StartedAt: started}
	finish := func(r *Report) *Report {
		r.Duration = e.now().Sub(started)
		return r
	}

	// Load state.
	manifest, err := LoadManifest(e.store, e.def)
	if err != nil {
		return finish(report), err
	}

	prevPath := manifest.CurrentPath()
	working := Snapshot{}
	prevExists := false
	if prevPath != "" {
		working, prevExists, err = LoadSnapshot(e.store, prevPath)
		if err != nil {
			return finish(report), err
		}
		if prevExists {
			report.Previous = prevPath
		} else {
			e.log.Warn("manifest points at a missing snapshot, starting from empty", "path", prevPath)
		}
	}
	report.Known = len(working)
	report.Total = report.Known
	bootstrap := report.Known == 0
	e.log.Debug("loaded state", "version", manifest.Version, "path", prevPath, "known", report.Known, "bootstrap", bootstrap)

	// Staleness probe.
	count, err := e.catalog.ProbeCount(ctx, e.def.Endpoint)
	if err != nil {
		e.log.Warn("probe failed, treating count as unknown", "err", err)
		count = catalog.Count{}
	}
	if count.Known {
		n := count.N
		report.Probe = &n
	}
	if !bootstrap && count.Known && count.N <= report.Known {
		e.log.Info("up to date", "probe", count.N, "known", report.Known)
		report.Outcome = OutcomeNoop
		report.Reason = ReasonProbe
		return finish(report), nil
	}

	// Full listing and diff.
	listing, err := e.catalog.ListAll(ctx, e.def.Endpoint)
	if err != nil {
		return finish(report), fmt.Errorf("listing %s: %w", e.def.Name, err)
	}
	report.Listed = len(listing)

	missing := Diff(listing, working)
	report.Missing = len(missing)
	if len(missing) == 0 {
		e.log.Info("no missing entries", "listed", report.Listed, "known", report.Known)
		report.Outcome = OutcomeNoop
		report.Reason = ReasonDiff
		return finish(report), nil
	}
	e.log.Info("fetching missing entries", "missing", len(missing), "width", pool.Width(e.width, len(missing)))

	// Bounded concurrent fetch. Once scheduled, every fetch runs to completion;
	// cancelling ctx does not abort the batch. The client timeout still bounds
	// each request.
	res := pool.Run(context.WithoutCancel(ctx), missing, e.width,
		func(ctx context.Context, key string) (fetched, error) {
			rec, err := e.fetcher.FetchOne(ctx, e.def, key)
			if err != nil {
				return fetched{}, err
			}
			return fetched{key: key, rec: rec}, nil
		},
		pool.OnFailure(func(key string, err error) {
			e.log.Warn("fetch failed", "key", key, "err", err)
		}),
		pool.OnSuccess(func(key string) {
			e.log.Debug("fetched", "key", key)
		}),
	)

	for _, f := range res.Succeeded {
		added, err := working.Put(f.key, f.rec)
		if err != nil {
			e.log.Warn("dropping entry", "key", f.key, "err", err)
			report.Failed++
			continue
		}
		if added {
			report.Added++
		}
	}
	report.Failed += res.Failed

	// Publish: snapshot first, then the manifest that points at it.
	version := started.UTC().Format(VersionLayout)
	newPath := e.def.SnapshotPath(version)
	if err := SaveSnapshot(e.store, newPath, working); err != nil {
		return finish(report), fmt.Errorf("writing snapshot %s: %w", newPath, err)
	}

	manifest.Version = version
	manifest.URL = &newPath
	if err := SaveManifest(e.store, e.def, manifest); err != nil {
		return finish(report), fmt.Errorf("writing manifest: %w", err)
	}
	report.Outcome = OutcomePublished
	report.Version = version
	report.SnapshotPath = newPath
	report.Total = len(working)

	// Retire the superseded file.
	if prevExists && blobstore.Canonical(prevPath) != newPath {
		if err := e.store.Delete(prevPath); err != nil {
			e.log.Warn("failed to delete previous snapshot", "path", prevPath, "err", err)
			report.RetireError = err.Error()
		} else {
			report.Retired = prevPath
		}
	}

	e.log.Info("published snapshot",
		"version", version,
		"path", newPath,
		"added", report.Added,
		"failed", report.Failed,
		"total", report.Total,
	)
	return finish(report), nil
}

// Diff returns the listing names absent from known, in listing order.
func Diff(listing []catalog.ListEntry, known Snapshot) []string {
	missing := make([]string, 0)
	seen := make(map[string]struct{}, len(listing))
	for _, entry := range listing {
		if entry.Name == "" || known.Has(entry.Name) {
			continue
		}
		if _, dup := seen[entry.Name]; dup {
			continue
		}
		seen[entry.Name] = struct{}{}
		missing = append(missing, entry.Name)
	}
	return missing
}
