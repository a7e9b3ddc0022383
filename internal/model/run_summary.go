package model

import (
	"time"

	"github.com/google/uuid"
)

// RunSummary collects the sub-area reports of one batch run.
type RunSummary struct {
	// RunID uniquely identifies the run in the history database.
	RunID string `json:"run_id"`

	// RepositorySlug is the 3Di repository the run pushed to.
	RepositorySlug string `json:"repository_slug"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// SubAreas are the reports in sub-area list order.
	SubAreas []*SubAreaReport `json:"subareas"`

	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	// Cancelled is true when the run was interrupted before every
	// sub-area was processed.
	Cancelled bool `json:"cancelled,omitempty"`
}

// NewRunSummary creates a summary with a new run id.
func NewRunSummary(repositorySlug string) *RunSummary {
	return &RunSummary{
		RunID:          uuid.NewString(),
		RepositorySlug: repositorySlug,
		StartedAt:      time.Now(),
		SubAreas:       make([]*SubAreaReport, 0),
	}
}

// Add appends a finished sub-area report and updates the counts.
func (s *RunSummary) Add(r *SubAreaReport) {
	s.SubAreas = append(s.SubAreas, r)
	switch r.Outcome {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeFailed:
		s.Failed++
	case OutcomePending:
	}
	if r.Cancelled {
		s.Cancelled = true
	}
}

// Finish sets the end time of the run.
func (s *RunSummary) Finish() {
	s.FinishedAt = time.Now()
}

// Failures returns the failed sub-area reports.
func (s *RunSummary) Failures() []*SubAreaReport {
	failures := make([]*SubAreaReport, 0, s.Failed)
	for _, r := range s.SubAreas {
		if r.Failed() {
			failures = append(failures, r)
		}
	}
	return failures
}

// SimulationCount returns the number of submitted simulations.
func (s *RunSummary) SimulationCount() int {
	count := 0
	for _, r := range s.SubAreas {
		count += len(r.Simulations)
	}
	return count
}

// HasFailures reports whether any sub-area failed.
func (s *RunSummary) HasFailures() bool {
	return s.Failed > 0
}

// Duration returns the run duration, or zero while it is running.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
