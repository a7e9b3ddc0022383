package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/threedibatch/internal/config"
	"github.com/nao1215/threedibatch/internal/database"
	securelog "github.com/nao1215/threedibatch/internal/log"
	"github.com/nao1215/threedibatch/internal/model"
	"github.com/nao1215/threedibatch/internal/pipeline"
	"github.com/nao1215/threedibatch/internal/prepare"
	"github.com/nao1215/threedibatch/internal/report"
	"github.com/nao1215/threedibatch/internal/simulation"
	"github.com/nao1215/threedibatch/internal/threedi"
	"github.com/nao1215/threedibatch/internal/vcs"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Commit, push and simulate every sub-area",
		Long: `Run processes every sub-area of the sub-area list in order.

For each sub-area it:
1. copies the sub-area rasters into the schematisation working copy
   (when raster directories are configured)
2. commits and pushes the working copy with the sub-area name as message
3. waits until 3Di has processed the pushed revision into a model
4. runs every configured rain scenario on that model and waits for it
   to finish

A failing sub-area is reported and the run continues with the next one.
A summary is printed at the end and the run is stored in the history
database.

Examples:
  # Run with .threedibatch from the current or home directory
  threedibatch run

  # Use a specific configuration file and sub-area list
  threedibatch run -c project.yaml -s deelgebieden.txt

  # Write a Markdown summary to a file
  threedibatch run --markdown -o reports/run.md

  # Exit with status 1 when any sub-area failed
  threedibatch run --fail-on-error`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .threedibatch in current or home directory)")

	// Inputs
	cmd.Flags().StringP("subareas", "s", "", "Sub-area list file (one name per line)")
	cmd.Flags().StringP("repository", "r", "", "Mercurial working copy of the schematisation")
	cmd.Flags().String("slug", "", "3Di repository slug")
	cmd.Flags().String("organisation", "", "Organisation name to run simulations for")
	cmd.Flags().String("organisation-uuid", "", "Organisation uuid to run simulations for")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address for API requests (host:port)")

	// Simulation behavior
	cmd.Flags().String("start-date", "", "Simulation start date (YYYY-MM-DD, default: today)")
	cmd.Flags().Duration("model-max-wait", config.DefaultModelMaxWait,
		"Maximum wait for 3Di to process a pushed revision")
	cmd.Flags().DurationP("timeout", "t", config.DefaultSimulationTimeout,
		"Maximum wait for one simulation to finish (0 disables)")
	cmd.Flags().Bool("skip-post-processing", false, "Do not request Lizard post-processing")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON summary (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown summary (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write summary to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-history", false, "Do not store the run in the history database")
	cmd.Flags().Bool("fail-on-error", false, "Exit with status 1 when any sub-area failed")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildRunConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &batchRun{cfg: cfg, logger: logger, out: cmd.OutOrStdout()}
	summary, err := b.run(ctx)
	if err != nil {
		return err
	}

	if cfg.FailOnError && summary.HasFailures() {
		return fmt.Errorf("%d of %d sub-area(s) failed", summary.Failed, len(summary.SubAreas))
	}
	return nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// newLogger creates the redacting stderr logger.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	jsonLogs, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		jsonLogs, _ = cmd.Root().PersistentFlags().GetBool("log-json") //nolint:errcheck // false when undefined
	}
	if jsonLogs {
		return securelog.NewSecureJSONLogger(os.Stderr, verbose)
	}
	return securelog.NewSecureLogger(os.Stderr, verbose)
}

// buildRunConfig loads the configuration file and credentials and applies
// the command line flags on top.
func buildRunConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if err := applyRunFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if err := config.LoadCredentials(cfg); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	return cfg, nil
}

// loadConfig loads the configuration file. An explicitly given path must
// exist; without one the defaults are used when no file is found.
func loadConfig(configPath string) (*config.Config, error) {
	path := config.FindConfigFile(configPath)
	switch {
	case path != "":
		cfg, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		return cfg, nil
	case configPath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
	default:
		return config.NewConfig(), nil
	}
}

// applyRunFlags overrides configuration values with explicitly set flags.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	stringFlags := map[string]*string{
		"subareas":          &cfg.SubAreaFile,
		"repository":        &cfg.Repository.Dir,
		"slug":              &cfg.Repository.Slug,
		"organisation":      &cfg.API.OrganisationName,
		"organisation-uuid": &cfg.API.OrganisationUUID,
		"proxy":             &cfg.API.Proxy,
		"start-date":        &cfg.Simulation.StartDate,
		"output":            &cfg.ReportFile,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	durationFlags := map[string]*time.Duration{
		"model-max-wait": &cfg.Simulation.ModelMaxWait,
		"timeout":        &cfg.Simulation.Timeout,
	}
	for name, dst := range durationFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if flags.Changed("skip-post-processing") {
		v, err := flags.GetBool("skip-post-processing")
		if err != nil {
			return err
		}
		cfg.Simulation.SkipPostProcessing = v
	}

	var err error
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.FailOnError, err = flags.GetBool("fail-on-error"); err != nil {
		return err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noHistory

	return nil
}

// batchRun is one invocation of the run command.
type batchRun struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer

	// httpClient replaces the API HTTP client when set.
	httpClient *http.Client
	// hgRunner replaces the hg subprocess runner when set.
	hgRunner vcs.Runner
}

// run processes every sub-area and returns the run summary. The summary is
// written and stored even when the run is interrupted.
func (b *batchRun) run(ctx context.Context) (*model.RunSummary, error) {
	cfg := b.cfg

	subAreas, err := config.ReadSubAreaFile(cfg.SubAreaFile)
	if err != nil {
		return nil, err
	}

	client, err := b.newClient()
	if err != nil {
		return nil, err
	}

	organisation, err := resolveOrganisation(ctx, cfg, client)
	if err != nil {
		return nil, err
	}

	start, err := cfg.Simulation.StartDatetime(time.Now())
	if err != nil {
		return nil, err
	}

	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		b.logger.Info("history database opened", "path", db.Path())
	}

	deps := b.dependencies(client)
	runner := pipeline.NewRunner(
		func() *pipeline.Pipeline {
			return pipeline.Build(cfg, deps, organisation, start, pipeline.WithLogger(b.logger))
		},
		pipeline.WithRunnerLogger(b.logger),
		pipeline.WithStartCallback(func(subArea string, index, total int) {
			fmt.Fprintf(b.out, "[%d/%d] %s\n", index+1, total, subArea)
		}),
		pipeline.WithDoneCallback(func(r *model.SubAreaReport, _ int) {
			printSubAreaDone(b.out, r)
		}),
	)

	fmt.Fprintf(b.out, "Processing %d sub-area(s) of %s, simulations start at %s\n\n",
		len(subAreas), cfg.Repository.Slug, start.Format(threedi.DatetimeLayout))

	summary := model.NewRunSummary(cfg.Repository.Slug)
	reports, runErr := runner.Run(ctx, subAreas)
	for _, r := range reports {
		summary.Add(r)
	}
	if runErr != nil {
		summary.Cancelled = true
	}
	summary.Finish()

	if err := outputReport(cfg, summary, b.out); err != nil {
		b.logger.Error("failed to write summary", "error", err)
	}

	if db != nil {
		if err := db.SaveRun(context.WithoutCancel(ctx), summary); err != nil {
			b.logger.Error("failed to save run", "run_id", summary.RunID, "error", err)
		} else {
			b.logger.Info("run saved to history", "run_id", summary.RunID)
		}
	}

	fmt.Fprintln(b.out, "Finished!")

	if runErr != nil {
		return summary, fmt.Errorf("run interrupted: %w", runErr)
	}
	return summary, nil
}

// newClient creates the 3Di API client.
func (b *batchRun) newClient() (*threedi.Client, error) {
	httpClient := b.httpClient
	if httpClient == nil {
		var err error
		httpClient, err = threedi.NewHTTPClient(b.cfg.API.Timeout, b.cfg.API.Proxy)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
	}

	opts := []threedi.Option{
		threedi.WithHTTPClient(httpClient),
		threedi.WithLogger(b.logger),
		threedi.WithUserAgent(userAgent()),
	}
	if b.cfg.API.PersonalAPIToken != "" {
		opts = append(opts, threedi.WithPersonalAPIToken(b.cfg.API.PersonalAPIToken))
	} else {
		opts = append(opts, threedi.WithCredentials(b.cfg.API.Username, b.cfg.API.Password))
	}

	return threedi.NewClient(b.cfg.API.Host, opts...), nil
}

// dependencies wires the pipeline collaborators.
func (b *batchRun) dependencies(client *threedi.Client) pipeline.Dependencies {
	cfg := b.cfg

	repoOpts := []vcs.Option{
		vcs.WithExecutable(cfg.Repository.Hg),
		vcs.WithLogger(b.logger),
	}
	if b.hgRunner != nil {
		repoOpts = append(repoOpts, vcs.WithRunner(b.hgRunner))
	}

	deps := pipeline.Dependencies{
		Committer: vcs.NewRepository(cfg.Repository.Dir, repoOpts...),
		Waiter: simulation.NewWaiter(client,
			simulation.WithPollInterval(cfg.Simulation.ModelPollInterval),
			simulation.WithWaiterLogger(b.logger),
			simulation.WithWaitProgress(waitPrinter(b.out)),
		),
		Simulator: simulation.NewSubmitter(client,
			simulation.WithStatusPollInterval(cfg.Simulation.StatusPollInterval),
			simulation.WithTimeout(cfg.Simulation.Timeout),
			simulation.WithSubmitterLogger(b.logger),
			simulation.WithProgress(progressPrinter(b.out)),
		),
	}

	stager := prepare.NewStager(cfg.Repository.Dir, cfg.Rasters,
		prepare.WithLogger(b.logger),
		prepare.WithSchematisation(cfg.Repository.Schematisation),
	)
	if stager.Enabled() {
		deps.Preparer = stager
	}

	return deps
}

// resolveOrganisation returns the configured organisation uuid, looking it
// up by name once per run when only the name is configured.
func resolveOrganisation(ctx context.Context, cfg *config.Config, client *threedi.Client) (string, error) {
	if cfg.API.OrganisationUUID != "" {
		return cfg.API.OrganisationUUID, nil
	}

	id, err := client.OrganisationUUID(ctx, cfg.API.OrganisationName)
	if err != nil {
		return "", fmt.Errorf("failed to resolve organisation %q: %w", cfg.API.OrganisationName, err)
	}
	return id, nil
}

// waitPrinter prints how long the model wait has taken so far.
func waitPrinter(out io.Writer) simulation.WaitFunc {
	return func(slug string, revision int, waited time.Duration) {
		fmt.Fprintf(out, "    waiting for model %s revision %d (%d seconds)\n",
			slug, revision, int(waited.Seconds()))
	}
}

// progressPrinter prints simulation status and progress on one line.
func progressPrinter(out io.Writer) simulation.ProgressFunc {
	return func(name, status string, percentage float64) {
		fmt.Fprintf(out, "\r    %s: %-14s %5.1f%%", name, status, percentage)
		if status == threedi.StatusFinished || status == threedi.StatusCrashed {
			fmt.Fprintln(out)
		}
	}
}

// printSubAreaDone prints the outcome of one sub-area.
func printSubAreaDone(out io.Writer, r *model.SubAreaReport) {
	if r.Failed() {
		fmt.Fprintf(out, "\n    FAILED in %s: %s\n\n", r.FailedStep, r.ErrorMessage)
		return
	}
	fmt.Fprintf(out, "    revision %d, model %d, %d simulation(s) in %s\n\n",
		r.Revision, r.ModelID, len(r.Simulations), r.Duration().Round(time.Second))
}

// outputReport writes the summary in the requested format to out. With a
// report file the selected format goes to the file and a text summary to out.
func outputReport(cfg *config.Config, summary *model.RunSummary, out io.Writer) error {
	w := newReportWriter(cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose, out)

	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		w = report.NewMultiWriter(
			report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose)),
			newReportWriter(cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose, f),
		)
	}

	_, err := w.Write(summary)
	return err
}

// newReportWriter returns the writer for the selected format.
func newReportWriter(jsonReport, markdownReport, verbose bool, output io.Writer) report.Writer {
	switch {
	case jsonReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case markdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(verbose))
	}
}
