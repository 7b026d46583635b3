// Package fetcher retrieves one catalog entry and projects it into a
// snapshot record.
package fetcher

import (
	"context"
	"fmt"

	"github.com/jamesainslie/dexsync/pkg/dexsync/resource"
)

// DetailSource returns raw detail documents. *catalog.Client implements it.
type DetailSource interface {
	Detail(ctx context.Context, endpoint, name string) ([]byte, error)
}

// FetchError is a per-entry failure. It never aborts a batch.
type FetchError struct {
	Name  string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Name, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Fetcher fetches single entries.
type Fetcher struct {
	source DetailSource
}

// New returns a Fetcher reading details from source.
func New(source DetailSource) *Fetcher {
	return &Fetcher{source: source}
}

// FetchOne fetches name from def's endpoint and applies def's extractor.
// Every failure is returned as a *FetchError.
func (f *Fetcher) FetchOne(ctx context.Context, def resource.Definition, name string) (resource.Record, error) {
	raw, err := f.source.Detail(ctx, def.Endpoint, name)
	if err != nil {
		return nil, &FetchError{Name: name, Cause: err}
	}
	if def.Extract == nil {
		return nil, &FetchError{Name: name, Cause: fmt.Errorf("resource %s has no extractor", def.Name)}
	}
	rec, err := def.Extract(raw, name)
	if err != nil {
		return nil, &FetchError{Name: name, Cause: err}
	}
	return rec, nil
}
