package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/threedibatch/internal/config"
	"github.com/nao1215/threedibatch/internal/model"
	"github.com/nao1215/threedibatch/internal/rain"
	"github.com/nao1215/threedibatch/internal/threedi"
)

// defaultStatusPollInterval is the time between two status requests.
const defaultStatusPollInterval = 500 * time.Millisecond

// SimulationAPI is the part of the 3Di API the Submitter uses.
// *threedi.Client implements it.
type SimulationAPI interface {
	CreateSimulation(ctx context.Context, sim threedi.NewSimulation) (*threedi.Simulation, error)
	CreateConstantRain(ctx context.Context, simulationID int, rain threedi.ConstantRain) error
	CreateTimeseriesRain(ctx context.Context, simulationID int, rain threedi.TimeseriesRain) error
	CreateLizardBasicPostProcessing(ctx context.Context, simulationID int, pp threedi.LizardBasicPostProcessing) error
	CreateAction(ctx context.Context, simulationID int, action threedi.Action) error
	SimulationStatus(ctx context.Context, simulationID int) (*threedi.SimulationStatus, error)
	SimulationProgress(ctx context.Context, simulationID int) (*threedi.SimulationProgress, error)
}

// Request describes one simulation to submit.
type Request struct {
	Name         string
	ModelID      int
	Organisation string
	Start        time.Time

	// Duration of the simulation in seconds.
	Duration int

	// RainIntensity in mm/h and RainDuration in seconds describe a constant
	// rain event. They are ignored when Timeseries is set.
	RainIntensity float64
	RainDuration  int

	// Timeseries is an "offset,value" series in m/s.
	Timeseries string

	// PostProcessing enables Lizard basic post-processing.
	PostProcessing bool
}

// NewRequest builds the request for scenario on the given sub-area model.
func NewRequest(scenario config.Scenario, subArea string, modelID int, organisation string, start time.Time, postProcessing bool) Request {
	return Request{
		Name:           scenario.SimulationName(subArea),
		ModelID:        modelID,
		Organisation:   organisation,
		Start:          start,
		Duration:       scenario.SimulationDuration(),
		RainIntensity:  scenario.IntensityMMPerHour,
		RainDuration:   scenario.RainDuration,
		Timeseries:     scenario.Timeseries,
		PostProcessing: postProcessing,
	}
}

// ProgressFunc receives status and progress updates of a running simulation.
type ProgressFunc func(name, status string, percentage float64)

// Submitter creates, starts and follows simulations.
type Submitter struct {
	api          SimulationAPI
	pollInterval time.Duration
	timeout      time.Duration
	logger       *slog.Logger
	onProgress   ProgressFunc
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithStatusPollInterval sets the time between two status requests.
func WithStatusPollInterval(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithTimeout bounds the wait for a started simulation to finish.
// Zero disables the bound; the context still applies.
func WithTimeout(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.timeout = d
	}
}

// WithSubmitterLogger sets a custom logger.
func WithSubmitterLogger(logger *slog.Logger) SubmitterOption {
	return func(s *Submitter) {
		s.logger = logger
	}
}

// WithProgress sets a callback for status and progress updates.
func WithProgress(fn ProgressFunc) SubmitterOption {
	return func(s *Submitter) {
		s.onProgress = fn
	}
}

// NewSubmitter creates a Submitter using api.
func NewSubmitter(api SimulationAPI, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		api:          api,
		pollInterval: defaultStatusPollInterval,
		logger:       slog.Default(),
		onProgress:   func(string, string, float64) {},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run submits req and polls it until it finishes. The returned result is
// non-nil even on error and describes how far the submission got; a
// created simulation is never deleted or stopped.
func (s *Submitter) Run(ctx context.Context, req Request) (*model.SimulationResult, error) {
	result := &model.SimulationResult{
		Name:          req.Name,
		ModelID:       req.ModelID,
		RainIntensity: req.RainIntensity,
		RainDuration:  req.RainDuration,
		Duration:      req.Duration,
		StartDatetime: req.Start,
		SubmittedAt:   time.Now(),
	}

	var series *threedi.TimeseriesRain
	if req.Timeseries != "" {
		event, err := rain.NewTimeseriesEvent(req.Timeseries, 0)
		if err != nil {
			return fail(result, err)
		}
		series = &event
		result.RainIntensity = 0
		result.RainDuration = rain.Duration(event.Values)
	}

	created, err := s.api.CreateSimulation(ctx,
		threedi.NewSimulationAt(req.Name, req.ModelID, req.Organisation, req.Start, req.Duration))
	if err != nil {
		return fail(result, fmt.Errorf("failed to create simulation %q: %w", req.Name, err))
	}
	result.SimulationID = created.ID
	result.URL = created.URL
	s.logger.Info("simulation created", "name", req.Name, "simulation_id", created.ID, "model_id", req.ModelID)

	if series != nil {
		err = s.api.CreateTimeseriesRain(ctx, created.ID, *series)
	} else {
		err = s.api.CreateConstantRain(ctx, created.ID, rain.NewConstantEvent(req.RainIntensity, req.RainDuration))
	}
	if err != nil {
		return fail(result, fmt.Errorf("failed to add rain event to %q: %w", req.Name, err))
	}

	if req.PostProcessing {
		pp := threedi.LizardBasicPostProcessing{ScenarioName: req.Name, ProcessBasicResults: true}
		if err := s.api.CreateLizardBasicPostProcessing(ctx, created.ID, pp); err != nil {
			return fail(result, fmt.Errorf("failed to enable post-processing for %q: %w", req.Name, err))
		}
	}

	if err := s.api.CreateAction(ctx, created.ID, threedi.Action{Name: threedi.ActionStart}); err != nil {
		return fail(result, fmt.Errorf("failed to start simulation %q: %w", req.Name, err))
	}

	if err := s.poll(ctx, created.ID, result); err != nil {
		return fail(result, err)
	}
	return result, nil
}

// poll follows the simulation until it finishes.
func (s *Submitter) poll(ctx context.Context, simulationID int, result *model.SimulationResult) error {
	pollCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	previous := ""
	for {
		status, err := s.api.SimulationStatus(pollCtx, simulationID)
		if err != nil {
			return s.pollError(ctx, result.Name, fmt.Errorf("failed to read status: %w", err))
		}

		result.Status = status.Name
		if status.Name != previous {
			s.logger.Info("simulation status", "name", result.Name, "simulation_id", simulationID, "status", status.Name)
			s.onProgress(result.Name, status.Name, result.Progress)
			previous = status.Name
		}

		switch status.Name {
		case threedi.StatusFinished:
			result.FinishedAt = time.Now()
			return nil
		case threedi.StatusCrashed:
			return fmt.Errorf("%w: %s (simulation %d)", ErrSimulationCrashed, result.Name, simulationID)
		}

		progress, err := s.api.SimulationProgress(pollCtx, simulationID)
		var apiErr *threedi.APIError
		switch {
		case err == nil:
			result.Progress = progress.Percentage
			s.onProgress(result.Name, status.Name, progress.Percentage)
		case errors.As(err, &apiErr):
			// no progress before the simulation is initialized
			s.logger.Debug("progress not available", "name", result.Name, "status_code", apiErr.StatusCode)
		default:
			return s.pollError(ctx, result.Name, fmt.Errorf("failed to read progress: %w", err))
		}

		if err := sleepContext(pollCtx, s.pollInterval); err != nil {
			return s.pollError(ctx, result.Name, err)
		}
	}
}

// pollError turns the expiry of the poll timeout into ErrSimulationTimeout.
// Cancellation of the parent context is returned as is.
func (s *Submitter) pollError(parent context.Context, name string, err error) error {
	if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrSimulationTimeout, name, s.timeout)
	}
	return err
}

// fail records err on result.
func fail(result *model.SimulationResult, err error) (*model.SimulationResult, error) {
	result.ErrorMessage = err.Error()
	return result, err
}
