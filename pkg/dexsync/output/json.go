package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jamesainslie/dexsync/pkg/dexsync/snapshot"
)

// jsonOutput represents the full JSON output structure.
type jsonOutput struct {
	Reports []jsonReport `json:"reports"`
	Meta    jsonMeta     `json:"meta"`
}

// jsonReport represents one resource run in JSON output.
type jsonReport struct {
	Resource     string    `json:"resource"`
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
	Known        int       `json:"known"`
	Probe        *int      `json:"probe"`
	Listed       int       `json:"listed"`
	Missing      int       `json:"missing"`
	Added        int       `json:"added"`
	Failed       int       `json:"failed"`
	Total        int       `json:"total"`
	Version      string    `json:"version,omitempty"`
	SnapshotPath string    `json:"snapshot_path,omitempty"`
	Retired      string    `json:"retired,omitempty"`
	RetireError  string    `json:"retire_error,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	Duration     string    `json:"duration,omitempty"`
}

// jsonMeta represents invocation metadata in JSON output.
type jsonMeta struct {
	Source    string `json:"source"`
	DataDir   string `json:"data_dir"`
	Published int    `json:"published"`
	Noop      int    `json:"noop"`
	Failed    int    `json:"failed"`
	Added     int    `json:"added"`
	Duration  string `json:"duration,omitempty"`
}

func toJSONReport(rep *snapshot.Report) jsonReport {
	return jsonReport{
		Resource:     rep.Resource,
		Outcome:      string(rep.Outcome),
		Reason:       string(rep.Reason),
		Known:        rep.Known,
		Probe:        rep.Probe,
		Listed:       rep.Listed,
		Missing:      rep.Missing,
		Added:        rep.Added,
		Failed:       rep.Failed,
		Total:        rep.Total,
		Version:      rep.Version,
		SnapshotPath: rep.SnapshotPath,
		Retired:      rep.Retired,
		RetireError:  rep.RetireError,
		Error:        rep.Error,
		StartedAt:    rep.StartedAt,
		Duration:     formatDurationString(rep.Duration),
	}
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	reports := make([]jsonReport, len(r.Reports))
	for i, rep := range r.Reports {
		reports[i] = toJSONReport(rep)
	}

	t := r.Totals()
	output := jsonOutput{
		Reports: reports,
		Meta: jsonMeta{
			Source:    r.Source,
			DataDir:   r.DataDir,
			Published: t.Published,
			Noop:      t.Noop,
			Failed:    t.Failed,
			Added:     t.Added,
			Duration:  formatDurationString(r.Duration),
		},
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter writes one compact JSON object per resource.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, rep := range r.Reports {
		data, err := json.Marshal(toJSONReport(rep))
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

// Ensure JSONLFormatter implements Formatter.
var _ Formatter = (*JSONLFormatter)(nil)
