package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/threedibatch/internal/config"
	"github.com/nao1215/threedibatch/internal/database"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past runs from the history database",
		Long: `History shows runs stored by 'threedibatch run'.

Without arguments it lists the most recent runs. With a run id (or a unique
prefix of one) it prints the stored summary of that run. With --subarea it
lists the outcome of one sub-area over all runs.

Examples:
  # List the last 20 runs
  threedibatch history

  # Show a run as Markdown
  threedibatch history --markdown 0b4c2f7e

  # Outcome of one sub-area over time
  threedibatch history --subarea Polder_A`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20, "Number of runs to list (0 lists all)")
	cmd.Flags().StringP("subarea", "a", "", "List the history of one sub-area")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a run summary in Markdown format (mutually exclusive with --json)")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "History database directory")
	_ = cmd.Flags().MarkHidden("db-dir") //nolint:errcheck // flag is defined above

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	subArea, err := flags.GetString("subarea")
	if err != nil {
		return err
	}
	if subArea != "" && len(args) > 0 {
		return errors.New("--subarea cannot be combined with a run id")
	}

	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(out, "No runs found. Use 'threedibatch run' to start a run.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	switch {
	case len(args) == 1:
		return showRun(ctx, db, args[0], jsonOutput, markdownOutput, getVerboseFlag(cmd), out)
	case subArea != "":
		return listSubAreaHistory(ctx, db, subArea, jsonOutput, out)
	default:
		return listRuns(ctx, db, limit, jsonOutput, out)
	}
}

// showRun prints the stored summary of one run.
func showRun(ctx context.Context, db *database.HistoryDB, runID string, jsonOutput, markdownOutput, verbose bool, out io.Writer) error {
	summary, err := db.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	_, err = newReportWriter(jsonOutput, markdownOutput, verbose, out).Write(summary)
	return err
}

// listRuns prints the most recent runs.
func listRuns(ctx context.Context, db *database.HistoryDB, limit int, jsonOutput bool, out io.Writer) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if jsonOutput {
		return writeJSON(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found. Use 'threedibatch run' to start a run.")
		return nil
	}

	fmt.Fprintf(out, "Runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-24s  %s\n", "Run", "Started", "Repository", "Result")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))

	for _, run := range runs {
		result := fmt.Sprintf("%d ok, %d failed", run.Succeeded, run.Failed)
		if run.Cancelled {
			result += " (cancelled)"
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %-24s  %s\n",
			run.RunID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.RepositorySlug,
			result,
		)
	}

	fmt.Fprintln(out, "\nUse 'threedibatch history <run-id>' to show a run.")
	return nil
}

// listSubAreaHistory prints the outcome of one sub-area over all runs.
func listSubAreaHistory(ctx context.Context, db *database.HistoryDB, subArea string, jsonOutput bool, out io.Writer) error {
	entries, err := db.GetSubAreaHistory(ctx, subArea)
	if err != nil {
		return fmt.Errorf("failed to get sub-area history: %w", err)
	}

	if jsonOutput {
		return writeJSON(out, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintf(out, "No history found for %s\n", subArea)
		return nil
	}

	fmt.Fprintf(out, "History of %s (%d runs):\n\n", subArea, len(entries))
	fmt.Fprintf(out, "  %-19s  %-9s  %-8s  %-6s  %-4s  %s\n", "Started", "Outcome", "Revision", "Model", "Sims", "Error")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 80))

	for _, e := range entries {
		detail := ""
		if e.FailedStep != "" {
			detail = e.FailedStep + ": " + e.Error
		}
		fmt.Fprintf(out, "  %-19s  %-9s  %-8d  %-6d  %-4d  %s\n",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Outcome,
			e.Revision,
			e.ModelID,
			e.Simulations,
			detail,
		)
	}
	return nil
}

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
