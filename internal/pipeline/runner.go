package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/threedibatch/internal/model"
)

// Runner processes sub-areas sequentially.
// Every sub-area gets a fresh pipeline from the factory so no state leaks
// from one sub-area into the next.
type Runner struct {
	pipelineFactory func() *Pipeline
	logger          *slog.Logger
	onStart         func(subArea string, index, total int)
	onDone          func(report *model.SubAreaReport, index int)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets a custom logger for the runner.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithStartCallback sets a function called before each sub-area starts.
func WithStartCallback(fn func(subArea string, index, total int)) RunnerOption {
	return func(r *Runner) {
		r.onStart = fn
	}
}

// WithDoneCallback sets a function called with each finished report.
func WithDoneCallback(fn func(report *model.SubAreaReport, index int)) RunnerOption {
	return func(r *Runner) {
		r.onDone = fn
	}
}

// NewRunner creates a Runner using pipelineFactory for every sub-area.
func NewRunner(pipelineFactory func() *Pipeline, opts ...RunnerOption) *Runner {
	r := &Runner{
		pipelineFactory: pipelineFactory,
		onStart:         func(string, int, int) {},
		onDone:          func(*model.SubAreaReport, int) {},
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Run processes subAreas in order and returns one report per processed
// sub-area, in input order. A failing sub-area is recorded and the run
// continues with the next one.
//
// When ctx is cancelled the current sub-area is reported as failed, the
// remaining sub-areas are not started and ctx.Err() is returned with the
// reports collected so far.
func (r *Runner) Run(ctx context.Context, subAreas []string) ([]*model.SubAreaReport, error) {
	r.logger.Info("starting run", "subareas", len(subAreas))
	startTime := time.Now()

	reports := make([]*model.SubAreaReport, 0, len(subAreas))
	for i, subArea := range subAreas {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("run cancelled", "remaining", len(subAreas)-i, "reason", err)
			return reports, err
		}

		r.logger.Info("processing sub-area",
			"subarea", subArea,
			"index", i+1,
			"total", len(subAreas),
		)
		r.onStart(subArea, i, len(subAreas))

		report := model.NewSubAreaReport(subArea)
		if err := r.pipelineFactory().Execute(ctx, report); err != nil {
			r.logger.Error("sub-area failed",
				"subarea", subArea,
				"step", report.FailedStep,
				"error", err,
			)
		} else {
			r.logger.Info("sub-area completed",
				"subarea", subArea,
				"revision", report.Revision,
				"simulations", len(report.Simulations),
			)
		}

		reports = append(reports, report)
		r.onDone(report, i)
	}

	r.logger.Info("run complete",
		"subareas", len(subAreas),
		"elapsed", time.Since(startTime),
	)

	return reports, ctx.Err()
}
