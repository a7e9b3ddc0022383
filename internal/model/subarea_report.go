package model

import (
	"context"
	"errors"
	"time"
)

// SubAreaReport is the result of processing one sub-area (deelgebied).
// The pipeline fills it step by step; a failed step records its name and
// error and leaves the remaining fields as far as they got.
type SubAreaReport struct {
	// Name is the sub-area name from the sub-area list.
	Name string `json:"name"`

	// Outcome is the final state of the sub-area.
	Outcome Outcome `json:"outcome"`

	// FailedStep is the name of the step that failed, if any.
	FailedStep string `json:"failed_step,omitempty"`

	// Error is the error of the failed step.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional

	// Cancelled is true when the run was interrupted while this sub-area
	// was being processed.
	Cancelled bool `json:"cancelled,omitempty"`

	// Revision is the repository revision pushed for this sub-area.
	Revision int `json:"revision,omitempty"`

	// ModelID is the id of the processed 3Di model for Revision.
	ModelID int `json:"model_id,omitempty"`

	// ModelName is the name of the processed 3Di model.
	ModelName string `json:"model_name,omitempty"`

	// PreparedFiles lists the rasters staged into the working copy.
	PreparedFiles []PreparedFile `json:"prepared_files,omitempty"`

	// Simulations lists submitted simulations in submission order,
	// including a partially submitted one when a simulation step failed.
	Simulations []SimulationResult `json:"simulations,omitempty"`

	// PerformedSteps lists the steps that completed.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// PreparedFile is a raster copied into the working copy.
type PreparedFile struct {
	// Kind is the raster kind: dem, friction or infiltration.
	Kind string `json:"kind"`

	// Source is the source raster path.
	Source string `json:"source"`

	// Target is the path relative to the repository directory.
	Target string `json:"target"`

	// SHA3 is the hex SHA3-256 checksum of the copied file.
	SHA3 string `json:"sha3"`

	// Size in bytes.
	Size int64 `json:"size"`
}

// SimulationResult describes one submitted simulation.
type SimulationResult struct {
	// Name is the simulation (and Lizard scenario) name.
	Name string `json:"name"`

	// SimulationID is zero when creating the simulation failed.
	SimulationID int    `json:"simulation_id,omitempty"`
	URL          string `json:"url,omitempty"`
	ModelID      int    `json:"model_id"`

	// Status is the last status seen while polling.
	Status string `json:"status,omitempty"`

	// Progress is the last progress percentage seen while polling.
	Progress float64 `json:"progress,omitempty"`

	// RainIntensity in mm/h; zero for time series rain.
	RainIntensity float64 `json:"rain_intensity,omitempty"`
	RainDuration  int     `json:"rain_duration,omitempty"`
	Duration      int     `json:"duration"`

	StartDatetime time.Time `json:"start_datetime"`
	SubmittedAt   time.Time `json:"submitted_at"`
	FinishedAt    time.Time `json:"finished_at,omitzero"`

	// ErrorMessage is set when the simulation did not finish.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// Finished reports whether the simulation reached the finished status.
func (s SimulationResult) Finished() bool {
	return s.ErrorMessage == "" && !s.FinishedAt.IsZero()
}

// NewSubAreaReport creates a pending report for the named sub-area.
func NewSubAreaReport(name string) *SubAreaReport {
	return &SubAreaReport{
		Name:      name,
		Outcome:   OutcomePending,
		StartedAt: time.Now(),
	}
}

// AddStep records a completed step.
func (r *SubAreaReport) AddStep(step string) {
	r.PerformedSteps = append(r.PerformedSteps, step)
}

// AddSimulation records a submitted simulation.
func (r *SubAreaReport) AddSimulation(sim SimulationResult) {
	r.Simulations = append(r.Simulations, sim)
}

// Fail marks the sub-area as failed in step with err.
// A context.Canceled error also sets Cancelled.
func (r *SubAreaReport) Fail(step string, err error) {
	r.Outcome = OutcomeFailed
	r.FailedStep = step
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	if errors.Is(err, context.Canceled) {
		r.Cancelled = true
	}
	r.FinishedAt = time.Now()
}

// Succeed marks the sub-area as succeeded.
func (r *SubAreaReport) Succeed() {
	r.Outcome = OutcomeSucceeded
	r.FinishedAt = time.Now()
}

// Failed reports whether the sub-area failed.
func (r *SubAreaReport) Failed() bool {
	return r.Outcome == OutcomeFailed
}

// Duration returns how long the sub-area took, or zero if it is pending.
func (r *SubAreaReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
