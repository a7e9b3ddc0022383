// Package report writes run summaries.
//
// Three formats are available:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: Markdown for sharing the outcome of a batch run
//   - JSONWriter: JSON for other tools
//
// All writers implement Writer and can be combined with MultiWriter.
package report
