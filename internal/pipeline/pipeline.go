package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/threedibatch/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the report filled by the
// previous steps.
type Step interface {
	// Do executes the step. An error stops the pipeline for this sub-area.
	Do(ctx context.Context, report *model.SubAreaReport) error

	// Name returns the step's name for logging and failure reports.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. Cancellation is checked before each
// step; a running step handles it itself.
//
// The first error marks the report failed with the step name and is
// returned. When every step succeeds the report is marked succeeded.
func (p *Pipeline) Execute(ctx context.Context, report *model.SubAreaReport) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"subarea", report.Name,
				"reason", ctx.Err(),
			)
			report.Fail(step.Name(), ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"subarea", report.Name,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"subarea", report.Name,
				"error", err,
			)
			report.Fail(step.Name(), err)
			return err
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"subarea", report.Name,
		)
		report.AddStep(step.Name())
	}

	report.Succeed()
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
