package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/threedibatch/internal/model"
)

// MarkdownWriter outputs run summaries in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeOutcome(md, summary)
	w.writeSubAreas(md, summary)
	w.writeFailures(md, summary)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.RunSummary) {
	md.H1("3Di Batch Run")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + summary.RunID + "`"},
			{"Repository", "`" + summary.RepositorySlug + "`"},
			{"Started", formatTime(summary.StartedAt)},
			{"Duration", formatDuration(summary.Duration())},
			{"Sub-areas", strconv.Itoa(len(summary.SubAreas))},
			{"Simulations", strconv.Itoa(summary.SimulationCount())},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeOutcome(md *markdown.Markdown, summary *model.RunSummary) {
	md.H2("Outcome")
	md.PlainText("")

	if len(summary.SubAreas) > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Sub-area outcome"),
			piechart.WithShowData(true),
		)
		if summary.Succeeded > 0 {
			chart.LabelAndIntValue("Succeeded", uint64(summary.Succeeded))
		}
		if summary.Failed > 0 {
			chart.LabelAndIntValue("Failed", uint64(summary.Failed))
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case summary.Cancelled:
		md.Warningf("Run was cancelled. %d of %d sub-area(s) were processed.",
			summary.Succeeded+summary.Failed, len(summary.SubAreas))
	case summary.Failed > 0:
		md.Cautionf("%d sub-area(s) failed. See the failures below.", summary.Failed)
	case len(summary.SubAreas) == 0:
		md.Note("No sub-areas were processed.")
	default:
		md.Tip("All sub-areas succeeded.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeSubAreas(md *markdown.Markdown, summary *model.RunSummary) {
	if len(summary.SubAreas) == 0 {
		return
	}

	md.H2("Sub-areas")
	md.PlainText("")

	rows := make([][]string, 0, len(summary.SubAreas))
	for _, r := range summary.SubAreas {
		rows = append(rows, []string{
			r.Name,
			outcomeText(r.Outcome),
			intOrDash(r.Revision),
			intOrDash(r.ModelID),
			simulationList(r.Simulations),
			formatDuration(r.Duration()),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Sub-area", "Outcome", "Revision", "Model", "Simulations", "Duration"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.RunSummary) {
	failures := summary.Failures()
	if len(failures) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	items := make([]string, 0, len(failures))
	for _, r := range failures {
		item := "**" + r.Name + "** failed in `" + r.FailedStep + "`"
		if r.ErrorMessage != "" {
			item += ": " + r.ErrorMessage
		}
		items = append(items, item)
	}
	md.BulletList(items...)
	md.PlainText("")
}

func outcomeText(o model.Outcome) string {
	switch o {
	case model.OutcomeSucceeded:
		return "✅ succeeded"
	case model.OutcomeFailed:
		return "❌ failed"
	case model.OutcomePending:
		return "⏳ pending"
	default:
		return o.String()
	}
}

func intOrDash(n int) string {
	if n <= 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

// simulationList renders simulations as "name (status)" separated by <br>.
func simulationList(sims []model.SimulationResult) string {
	if len(sims) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(sims))
	for _, sim := range sims {
		parts = append(parts, sim.Name+" ("+simulationStatus(sim)+")")
	}
	return strings.Join(parts, "<br>")
}
