// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/testpilot/internal/types"
	"github.com/jonathan/testpilot/internal/validation"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
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

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintValidation outputs a human-readable summary of a CSV validation.
func (p *Printer) PrintValidation(result *validation.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Rows:    %d\n", len(result.Rows)))
	sb.WriteString(fmt.Sprintf("Valid:   %t\n", result.Valid))

	if len(result.Errors) > 0 {
		sb.WriteString("\nRow issues:\n")
		count := min(len(result.Errors), maxItemsToShow)
		for i := 0; i < count; i++ {
			e := result.Errors[i]
			sb.WriteString(fmt.Sprintf("  • line %d: empty %s\n", e.Line, e.Column))
		}
		if len(result.Errors) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(result.Errors)-maxItemsToShow))
		}
	}

	p.printBox("CSV VALIDATION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCaseList outputs the synthesized test cases for a job.
func (p *Printer) PrintCaseList(list *types.CaseList) {
	if list == nil || len(list.TestCases) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generated %d cases:\n\n", len(list.TestCases)))

	count := min(len(list.TestCases), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := list.TestCases[i]
		title := c.Title
		if len(title) > 45 {
			title = title[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("• [%s] %s\n", c.RequirementID, title))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(list.TestCases) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more cases", len(list.TestCases)-maxItemsToShow))
	}

	p.printBox("SYNTHESIZED TEST CASES", sb.String())
}

// PrintScripts outputs the rendered script filenames for a job.
func (p *Printer) PrintScripts(job *types.Job) {
	if job == nil || len(job.ScriptFiles) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Rendered %d files:\n\n", len(job.ScriptFiles)))

	count := min(len(job.ScriptFiles), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("• %s\n", job.ScriptFiles[i]))
	}
	if len(job.ScriptFiles) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more files", len(job.ScriptFiles)-maxItemsToShow))
	}

	p.printBox("RENDERED SCRIPTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRun outputs a run's terminal status and totals.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintRun(run *types.TestRun) {
	if run == nil {
		return
	}
	if run.Status == types.RunStatusCompleted && run.Totals.Failed == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ ALL TESTS PASSED")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Duration: %.2fs\n", run.Duration))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Total: %d  Passed: %d  Failed: %d  Skipped: %d",
		run.Totals.Total, run.Totals.Passed, run.Totals.Failed, run.Totals.Skipped))

	p.printBox("EXECUTION RESULT", sb.String())
}
