// Package output provides formatters for displaying dexsync sync results
// in various output formats (pretty, plain, json, jsonl, yaml).
//
// The package uses a registry pattern so the CLI can select a formatter
// by name at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/dexsync/pkg/dexsync/snapshot"
)

// Result contains the complete output data for one `dexsync sync` invocation.
type Result struct {
	// Reports holds one report per resource, in run order.
	Reports []*snapshot.Report `json:"reports" yaml:"reports"`

	// Source is the catalog base URL.
	Source string `json:"source" yaml:"source"`

	// DataDir is the directory snapshots are published under.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Duration is the wall time of the whole invocation.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Totals aggregates counts across all reports.
type Totals struct {
	Published int
	Noop      int
	Failed    int
	Added     int
	FetchErrs int
}

// Totals sums the reports.
func (r *Result) Totals() Totals {
	var t Totals
	for _, rep := range r.Reports {
		switch rep.Outcome {
		case snapshot.OutcomePublished:
			t.Published++
		case snapshot.OutcomeNoop:
			t.Noop++
		case snapshot.OutcomeFailed:
			t.Failed++
		}
		t.Added += rep.Added
		t.FetchErrs += rep.Failed
	}
	return t
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry, replacing any
// existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// formatDurationString formats a duration for machine-readable output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// formatDuration rounds a duration for display.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}
