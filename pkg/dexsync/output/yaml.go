package output

import (
	"bytes"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlOutput represents the full YAML output structure.
type yamlOutput struct {
	Reports []yamlReport `yaml:"reports"`
	Meta    yamlMeta     `yaml:"meta"`
}

// yamlReport represents one resource run in YAML output.
type yamlReport struct {
	Resource     string    `yaml:"resource"`
	Outcome      string    `yaml:"outcome"`
	Reason       string    `yaml:"reason,omitempty"`
	Known        int       `yaml:"known"`
	Probe        *int      `yaml:"probe"`
	Listed       int       `yaml:"listed"`
	Missing      int       `yaml:"missing"`
	Added        int       `yaml:"added"`
	Failed       int       `yaml:"failed"`
	Total        int       `yaml:"total"`
	Version      string    `yaml:"version,omitempty"`
	SnapshotPath string    `yaml:"snapshot_path,omitempty"`
	Retired      string    `yaml:"retired,omitempty"`
	RetireError  string    `yaml:"retire_error,omitempty"`
	Error        string    `yaml:"error,omitempty"`
	StartedAt    time.Time `yaml:"started_at"`
	Duration     string    `yaml:"duration,omitempty"`
}

// yamlMeta represents invocation metadata in YAML output.
type yamlMeta struct {
	Source    string `yaml:"source"`
	DataDir   string `yaml:"data_dir"`
	Published int    `yaml:"published"`
	Noop      int    `yaml:"noop"`
	Failed    int    `yaml:"failed"`
	Added     int    `yaml:"added"`
	Duration  string `yaml:"duration,omitempty"`
}

// YAMLFormatter formats output as YAML.
// It produces the same structure as JSONFormatter.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Result) error {
	output := f.buildOutput(r)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(output); err != nil {
		return err
	}
	return encoder.Close()
}

// buildOutput converts Result to the YAML output structure.
func (f *YAMLFormatter) buildOutput(r *Result) yamlOutput {
	reports := make([]yamlReport, len(r.Reports))
	for i, rep := range r.Reports {
		reports[i] = yamlReport{
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

	t := r.Totals()
	return yamlOutput{
		Reports: reports,
		Meta: yamlMeta{
			Source:    r.Source,
			DataDir:   r.DataDir,
			Published: t.Published,
			Noop:      t.Noop,
			Failed:    t.Failed,
			Added:     t.Added,
			Duration:  formatDurationString(r.Duration),
		},
	}
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

// Ensure YAMLFormatter implements Formatter.
var _ Formatter = (*YAMLFormatter)(nil)
