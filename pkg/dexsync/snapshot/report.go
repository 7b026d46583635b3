package snapshot

import "time"

// Outcome is how a sync run ended.
type Outcome string

const (
	// OutcomeNoop means nothing was missing and no state changed.
	OutcomeNoop Outcome = "noop"
	// OutcomePublished means a new snapshot was written and the manifest repointed.
	OutcomePublished Outcome = "published"
	// OutcomeFailed marks a fatal run. Set by callers, never by Sync.
	OutcomeFailed Outcome = "failed"
)

// Reason explains a no-op.
type Reason string

const (
	// ReasonProbe means the remote count did not exceed the local key count.
	ReasonProbe Reason = "probe"
	// ReasonDiff means the full listing had no missing keys.
	ReasonDiff Reason = "diff"
)

// Report summarizes one sync run.
type Report struct {
	Resource string  `json:"resource" yaml:"resource"`
	Outcome  Outcome `json:"outcome" yaml:"outcome"`
	Reason   Reason  `json:"reason,omitempty" yaml:"reason,omitempty"`

	Known   int           `json:"known" yaml:"known"`
	Probe   *int          `json:"probe" yaml:"probe"` // nil when the remote count was unknown
	Listed  int           `json:"listed" yaml:"listed"`
	Missing int           `json:"missing" yaml:"missing"`
	Added   int           `json:"added" yaml:"added"`
	Failed  int           `json:"failed" yaml:"failed"`
	Total   int           `json:"total" yaml:"total"`

	Version      string `json:"version,omitempty" yaml:"version,omitempty"`
	SnapshotPath string `json:"snapshot_path,omitempty" yaml:"snapshot_path,omitempty"`
	Previous     string `json:"previous,omitempty" yaml:"previous,omitempty"`
	Retired      string `json:"retired,omitempty" yaml:"retired,omitempty"`
	RetireError  string `json:"retire_error,omitempty" yaml:"retire_error,omitempty"`

	// Error is set by callers that record a fatal run.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Published reports whether the run wrote a new snapshot.
func (r *Report) Published() bool {
	return r.Outcome == OutcomePublished
}
