package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/dexsync/pkg/dexsync/snapshot"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))
	w.WriteString("\n")

	if problems := f.formatProblems(r); problems != "" {
		w.WriteString("\n")
		w.WriteString(problems)
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	lines := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Catalog:"), ValueStyle.Render(r.Source)),
		fmt.Sprintf("%s %s", LabelStyle.Render("Data:"), PathStyle.Render(r.DataDir)),
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatTable builds one row per resource.
func (f *PrettyFormatter) formatTable(r *Result) string {
	if len(r.Reports) == 0 {
		return MutedStyle.Render("  No resources selected\n")
	}

	nameWidth := len("RESOURCE")
	for _, rep := range r.Reports {
		if len(rep.Resource) > nameWidth {
			nameWidth = len(rep.Resource)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s%s%s%s%s\n",
		TableHeaderStyle.Render(padRight("RESOURCE", nameWidth)),
		TableHeaderStyle.Render(padRight("OUTCOME", 10)),
		TableHeaderStyle.Render(padLeft("ADDED", 7)),
		TableHeaderStyle.Render(padLeft("FAILED", 7)),
		TableHeaderStyle.Render("SNAPSHOT"),
	))

	for _, rep := range r.Reports {
		sb.WriteString(fmt.Sprintf("  %s%s%s%s%s\n",
			TableRowStyle.Render(padRight(rep.Resource, nameWidth)),
			TableRowStyle.Render(f.outcome(rep)),
			TableRowStyle.Render(padLeft(humanize.Comma(int64(rep.Added)), 7)),
			TableRowStyle.Render(f.failed(rep)),
			f.detail(rep),
		))
	}
	return sb.String()
}

func (f *PrettyFormatter) outcome(rep *snapshot.Report) string {
	label := padRight(string(rep.Outcome), 10)
	switch rep.Outcome {
	case snapshot.OutcomePublished:
		if rep.Failed > 0 {
			return WarningStyle.Render(label)
		}
		return SuccessStyle.Render(label)
	case snapshot.OutcomeFailed:
		return ErrorStyle.Render(label)
	default:
		return MutedStyle.Render(label)
	}
}

func (f *PrettyFormatter) failed(rep *snapshot.Report) string {
	s := padLeft(humanize.Comma(int64(rep.Failed)), 7)
	if rep.Failed > 0 {
		return WarningStyle.Render(s)
	}
	return s
}

func (f *PrettyFormatter) detail(rep *snapshot.Report) string {
	switch rep.Outcome {
	case snapshot.OutcomePublished:
		return PathStyle.Render(rep.SnapshotPath)
	case snapshot.OutcomeNoop:
		return MutedStyle.Render(fmt.Sprintf("up to date (%s, %s entries)", rep.Reason, humanize.Comma(int64(rep.Known))))
	default:
		return ErrorStyle.Render("see errors below")
	}
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	t := r.Totals()
	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Published:"), ValueStyle.Render(fmt.Sprintf("%d", t.Published))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Added:"), ValueStyle.Render(humanize.Comma(int64(t.Added)))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Took:"), ValueStyle.Render(formatDuration(r.Duration))),
		MutedStyle.Render("Use -o plain for unformatted output"),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

// formatProblems lists fatal errors and failed retirements.
func (f *PrettyFormatter) formatProblems(r *Result) string {
	var sb strings.Builder
	for _, rep := range r.Reports {
		if rep.Error != "" {
			sb.WriteString(ErrorStyle.Render(fmt.Sprintf("  %s: %s", rep.Resource, rep.Error)))
			sb.WriteString("\n")
		}
		if rep.RetireError != "" {
			sb.WriteString(WarningStyle.Render(fmt.Sprintf("  %s: could not remove %s: %s", rep.Resource, rep.Previous, rep.RetireError)))
			sb.WriteString("\n")
		}
	}
	if sb.Len() == 0 {
		return ""
	}
	return WarningStyle.Bold(true).Render("Problems:") + "\n" + sb.String()
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
