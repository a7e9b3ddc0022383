package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/threedibatch/internal/model"
)

// SimpleWriter outputs a plain text run summary for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds prepared files and step lists.
	verbose bool

	title cases.Caser
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.RunSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeSubAreas(&sb, summary)
	w.writeFailures(&sb, summary)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.RunSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      3DI BATCH RUN SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run:          %s\n", summary.RunID)
	fmt.Fprintf(sb, "Repository:   %s\n", summary.RepositorySlug)
	fmt.Fprintf(sb, "Started:      %s\n", formatTime(summary.StartedAt))
	fmt.Fprintf(sb, "Duration:     %s\n", formatDuration(summary.Duration()))
	fmt.Fprintf(sb, "Sub-areas:    %d (%d succeeded, %d failed)\n",
		len(summary.SubAreas), summary.Succeeded, summary.Failed)
	fmt.Fprintf(sb, "Simulations:  %d\n", summary.SimulationCount())
	if summary.Cancelled {
		sb.WriteString("Status:       CANCELLED (partial results)\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSubAreas(sb *strings.Builder, summary *model.RunSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUB-AREAS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(summary.SubAreas) == 0 {
		sb.WriteString("  No sub-areas processed\n\n")
		return
	}

	for _, r := range summary.SubAreas {
		fmt.Fprintf(sb, "[%s] %s\n", outcomeIndicator(r.Outcome), r.Name)
		if r.Revision > 0 {
			fmt.Fprintf(sb, "    Revision: %d  Model: %d\n", r.Revision, r.ModelID)
		}
		for _, sim := range r.Simulations {
			fmt.Fprintf(sb, "    * %-32s %-14s", sim.Name, w.title.String(simulationStatus(sim)))
			if sim.SimulationID > 0 {
				fmt.Fprintf(sb, " id=%d", sim.SimulationID)
			}
			sb.WriteString("\n")
		}
		if w.verbose {
			for _, f := range r.PreparedFiles {
				fmt.Fprintf(sb, "    + %s %s (%d bytes, sha3 %s)\n", f.Kind, f.Target, f.Size, f.SHA3)
			}
			if len(r.PerformedSteps) > 0 {
				fmt.Fprintf(sb, "    Steps: %s\n", strings.Join(r.PerformedSteps, ", "))
			}
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, summary *model.RunSummary) {
	failures := summary.Failures()
	if len(failures) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILURES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, r := range failures {
		fmt.Fprintf(sb, "  %s: %s failed\n", r.Name, r.FailedStep)
		if r.ErrorMessage != "" {
			fmt.Fprintf(sb, "    %s\n", r.ErrorMessage)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// outcomeIndicator returns a short marker for the outcome.
func outcomeIndicator(o model.Outcome) string {
	switch o {
	case model.OutcomeSucceeded:
		return "OK"
	case model.OutcomeFailed:
		return "!!"
	case model.OutcomePending:
		return ".."
	default:
		return "??"
	}
}
