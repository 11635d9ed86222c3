// Package observability provides the service logger and the formatted output used by
// the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/trait-scorer/internal/analysis"
	"github.com/jonathan/trait-scorer/internal/scoring"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// barWidth is the width of a 100% bar in the summary
	barWidth = 20
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for _, line := range lines {
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintScores outputs the per-region scores of a validated result.
func (p *Printer) PrintScores(result *scoring.ValidatedResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-10s", ""))
	for _, t := range result.Traits {
		sb.WriteString(fmt.Sprintf(" %6s", abbreviate(t, 6)))
	}
	sb.WriteString("\n")

	for _, name := range result.RegionOrder {
		region := result.Regions[name]
		sb.WriteString(fmt.Sprintf("%-10s", abbreviate(name, 10)))
		for _, t := range result.Traits {
			sb.WriteString(fmt.Sprintf(" %6d", region.Scores[t]))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("%-10s", "total"))
	for _, t := range result.Traits {
		sb.WriteString(fmt.Sprintf(" %6d", result.Totals[t]))
	}

	p.printBox(fmt.Sprintf("SCORES (%s)", result.Schema), sb.String())
}

// PrintSummary outputs the trait ranking as percentage bars.
func (p *Printer) PrintSummary(summary *analysis.Summary) {
	if summary == nil {
		return
	}

	var sb strings.Builder
	for _, share := range summary.Ranking {
		filled := int(share.Percent * barWidth / 100)
		bar := strings.Repeat("█", filled) + strings.Repeat("·", barWidth-filled)
		sb.WriteString(fmt.Sprintf("%-11s %s %5.1f%%\n", abbreviate(share.Trait, 11), bar, share.Percent))
	}
	if summary.Dominant != "" {
		sb.WriteString(fmt.Sprintf("\nDominant: %s", summary.Dominant))
	}

	p.printBox("SUMMARY", sb.String())
}

// PrintViolations outputs the rule violations of a rejected reply.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintViolations(violations []scoring.Violation) {
	if len(violations) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ NO VIOLATIONS FOUND")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d violations:\n\n", len(violations)))

	for i, v := range violations {
		header := string(v.Kind)
		if v.Region != "" {
			header = v.Region + ": " + header
		}
		sb.WriteString(fmt.Sprintf("⚠ %s\n", header))
		sb.WriteString(fmt.Sprintf("  %s\n", v.Details))
		if i < len(violations)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("VALIDATION VIOLATIONS", sb.String())
}

// PrintOutcome outputs everything known about an analysis.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintOutcome(out *analysis.Outcome) {
	if out == nil {
		return
	}

	fmt.Fprintf(p.out, "Analysis %s (%s): %s", out.ID, out.Profile, out.Status)
	if out.Attempts > 0 {
		fmt.Fprintf(p.out, " after %d attempt(s)", out.Attempts)
	}
	fmt.Fprintln(p.out)

	switch {
	case out.Result != nil:
		p.PrintScores(out.Result)
		p.PrintSummary(out.Summary)
	case out.Classification != "":
		p.printBox("CLASSIFICATION", out.Classification)
	default:
		p.PrintScores(out.Partial)
		p.PrintViolations(out.Violations)
	}

	if out.Report != "" {
		p.printBox("REPORT", out.Report)
	}
	if out.ReportError != "" {
		fmt.Fprintf(p.out, "Report unavailable: %s\n", out.ReportError)
	}
}

// abbreviate shortens names so table columns stay aligned.
func abbreviate(name string, n int) string {
	r := []rune(name)
	if len(r) > n {
		return string(r[:n])
	}
	return name
}
