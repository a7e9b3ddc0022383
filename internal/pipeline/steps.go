package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/threedibatch/internal/config"
	"github.com/nao1215/threedibatch/internal/model"
	"github.com/nao1215/threedibatch/internal/simulation"
	"github.com/nao1215/threedibatch/internal/threedi"
)

// Step names as recorded in failed reports.
const (
	StepPrepare    = "prepare"
	StepCommitPush = "commit_push"
	StepWaitModel  = "wait_model"
	StepSimulate   = "simulate"
)

var (
	// ErrModelNotReady is returned when no processed model appeared for
	// the pushed revision within the maximum wait.
	ErrModelNotReady = errors.New("processed model not available")

	// ErrNoModel is returned by a simulate step that runs before a model
	// was found.
	ErrNoModel = errors.New("no model to simulate")
)

// Preparer stages the inputs of a sub-area into the working copy.
type Preparer interface {
	Prepare(ctx context.Context, subArea string) ([]model.PreparedFile, error)
}

// Committer commits and pushes the working copy and returns the revision.
type Committer interface {
	CommitAndPush(ctx context.Context, message string) (int, error)
}

// ModelWaiter waits for the processed model of a revision.
type ModelWaiter interface {
	WaitForModel(ctx context.Context, slug string, revision int, maxWait time.Duration) (*threedi.ThreediModel, error)
}

// Simulator submits one simulation and follows it until it finishes.
type Simulator interface {
	Run(ctx context.Context, req simulation.Request) (*model.SimulationResult, error)
}

// PrepareStep stages rasters for the sub-area.
type PrepareStep struct {
	preparer Preparer
}

// NewPrepareStep creates a new prepare step.
func NewPrepareStep(preparer Preparer) *PrepareStep {
	return &PrepareStep{preparer: preparer}
}

// Name returns the step name.
func (s *PrepareStep) Name() string {
	return StepPrepare
}

// Do executes the prepare step.
func (s *PrepareStep) Do(ctx context.Context, report *model.SubAreaReport) error {
	files, err := s.preparer.Prepare(ctx, report.Name)
	report.PreparedFiles = files
	return err
}

// CommitPushStep commits the working copy with the sub-area name as
// message and pushes it.
type CommitPushStep struct {
	committer Committer
}

// NewCommitPushStep creates a new commit and push step.
func NewCommitPushStep(committer Committer) *CommitPushStep {
	return &CommitPushStep{committer: committer}
}

// Name returns the step name.
func (s *CommitPushStep) Name() string {
	return StepCommitPush
}

// Do executes the commit and push step.
func (s *CommitPushStep) Do(ctx context.Context, report *model.SubAreaReport) error {
	rev, err := s.committer.CommitAndPush(ctx, report.Name)
	if err != nil {
		return err
	}
	report.Revision = rev
	return nil
}

// WaitModelStep waits until the pushed revision is processed into a model.
type WaitModelStep struct {
	waiter  ModelWaiter
	slug    string
	maxWait time.Duration
}

// NewWaitModelStep creates a new wait step for models of repository slug.
func NewWaitModelStep(waiter ModelWaiter, slug string, maxWait time.Duration) *WaitModelStep {
	return &WaitModelStep{waiter: waiter, slug: slug, maxWait: maxWait}
}

// Name returns the step name.
func (s *WaitModelStep) Name() string {
	return StepWaitModel
}

// Do executes the wait step.
func (s *WaitModelStep) Do(ctx context.Context, report *model.SubAreaReport) error {
	m, err := s.waiter.WaitForModel(ctx, s.slug, report.Revision, s.maxWait)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: %s revision %d after %s", ErrModelNotReady, s.slug, report.Revision, s.maxWait)
	}
	report.ModelID = m.ID
	report.ModelName = m.Name
	return nil
}

// SimulateStep submits one scenario on the sub-area model.
type SimulateStep struct {
	simulator      Simulator
	scenario       config.Scenario
	organisation   string
	start          time.Time
	postProcessing bool
	logger         *slog.Logger
}

// SimulateStepOption configures a SimulateStep.
type SimulateStepOption func(*SimulateStep)

// WithPostProcessing enables or disables Lizard basic post-processing.
func WithPostProcessing(enabled bool) SimulateStepOption {
	return func(s *SimulateStep) {
		s.postProcessing = enabled
	}
}

// WithSimulateLogger sets a custom logger for the simulate step.
func WithSimulateLogger(logger *slog.Logger) SimulateStepOption {
	return func(s *SimulateStep) {
		s.logger = logger
	}
}

// NewSimulateStep creates a step submitting scenario for organisation,
// starting at start.
func NewSimulateStep(simulator Simulator, scenario config.Scenario, organisation string, start time.Time, opts ...SimulateStepOption) *SimulateStep {
	s := &SimulateStep{
		simulator:      simulator,
		scenario:       scenario,
		organisation:   organisation,
		start:          start,
		postProcessing: true,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *SimulateStep) Name() string {
	return StepSimulate
}

// Do executes the simulate step. A partially submitted simulation is
// still added to the report.
func (s *SimulateStep) Do(ctx context.Context, report *model.SubAreaReport) error {
	if report.ModelID == 0 {
		return ErrNoModel
	}

	req := simulation.NewRequest(s.scenario, report.Name, report.ModelID, s.organisation, s.start, s.postProcessing)
	result, err := s.simulator.Run(ctx, req)
	if result != nil {
		report.AddSimulation(*result)
	}
	if err != nil {
		return fmt.Errorf("simulation %s: %w", req.Name, err)
	}

	s.logger.Info("simulation finished", "subarea", report.Name, "name", req.Name, "simulation_id", result.SimulationID)
	return nil
}

// Dependencies are the collaborators of the standard sub-area pipeline.
type Dependencies struct {
	// Preparer is optional; without it the prepare step is skipped.
	Preparer  Preparer
	Committer Committer
	Waiter    ModelWaiter
	Simulator Simulator
}

// Build assembles the standard sub-area pipeline: prepare, commit and
// push, wait for the model, then one simulate step per scenario.
func Build(cfg *config.Config, deps Dependencies, organisation string, start time.Time, opts ...Option) *Pipeline {
	p := New(opts...)

	if deps.Preparer != nil {
		p.AddStep(NewPrepareStep(deps.Preparer))
	}
	p.AddSteps(
		NewCommitPushStep(deps.Committer),
		NewWaitModelStep(deps.Waiter, cfg.Repository.Slug, cfg.Simulation.ModelMaxWait),
	)
	for _, scenario := range cfg.Scenarios {
		p.AddStep(NewSimulateStep(deps.Simulator, scenario, organisation, start,
			WithPostProcessing(!cfg.Simulation.SkipPostProcessing),
			WithSimulateLogger(p.logger),
		))
	}

	return p
}
