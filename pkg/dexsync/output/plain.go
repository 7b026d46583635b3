package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter formats output as an aligned table without styling.
// It is suitable for scripting and piping.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := tw.Write([]byte("RESOURCE\tOUTCOME\tREASON\tKNOWN\tLISTED\tADDED\tFAILED\tSNAPSHOT\n")); err != nil {
		return err
	}

	for _, rep := range r.Reports {
		reason := string(rep.Reason)
		if reason == "" {
			reason = "-"
		}
		snap := rep.SnapshotPath
		if snap == "" {
			snap = "-"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			rep.Resource, rep.Outcome, reason, rep.Known, rep.Listed, rep.Added, rep.Failed, snap); err != nil {
			return err
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	for _, rep := range r.Reports {
		if rep.Error != "" {
			fmt.Fprintf(w, "error: %s: %s\n", rep.Resource, rep.Error)
		}
	}
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
