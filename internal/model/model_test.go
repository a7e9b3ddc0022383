package model

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestSubAreaReport tests the sub-area report state transitions.
func TestSubAreaReport(t *testing.T) {
	t.Parallel()

	t.Run("new report is pending", func(t *testing.T) {
		t.Parallel()

		r := NewSubAreaReport("noord")
		if r.Name != "noord" {
			t.Errorf("got %q, expected noord", r.Name)
		}
		if r.Outcome != OutcomePending {
			t.Errorf("got %q, expected pending", r.Outcome)
		}
		if r.StartedAt.IsZero() {
			t.Error("expected StartedAt to be set")
		}
		if r.Duration() != 0 {
			t.Error("expected zero duration while pending")
		}
	})

	t.Run("fail records step and message", func(t *testing.T) {
		t.Parallel()

		r := NewSubAreaReport("zuid")
		r.AddStep("prepare")
		r.Fail("commit_push", errors.New("hg push: exit status 255"))

		if !r.Failed() {
			t.Error("expected report to be failed")
		}
		if r.FailedStep != "commit_push" {
			t.Errorf("got step %q", r.FailedStep)
		}
		if r.ErrorMessage != "hg push: exit status 255" {
			t.Errorf("got message %q", r.ErrorMessage)
		}
		if r.Cancelled {
			t.Error("plain errors must not mark the report cancelled")
		}
		if r.FinishedAt.IsZero() {
			t.Error("expected FinishedAt to be set")
		}
		if len(r.PerformedSteps) != 1 {
			t.Errorf("expected 1 performed step, got %v", r.PerformedSteps)
		}
	})

	t.Run("wrapped context cancellation marks the report cancelled", func(t *testing.T) {
		t.Parallel()

		r := NewSubAreaReport("west")
		r.Fail("wait_model", fmt.Errorf("waiting for model: %w", context.Canceled))
		if !r.Cancelled {
			t.Error("expected Cancelled to be true")
		}
	})

	t.Run("succeed", func(t *testing.T) {
		t.Parallel()

		r := NewSubAreaReport("oost")
		r.Succeed()
		if r.Outcome != OutcomeSucceeded || r.Failed() {
			t.Errorf("unexpected outcome %q", r.Outcome)
		}
	})
}

// TestSimulationResult_Finished tests the finished check.
func TestSimulationResult_Finished(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sim  SimulationResult
		want bool
	}{
		{"finished", SimulationResult{Status: "finished", FinishedAt: time.Now()}, true},
		{"still running", SimulationResult{Status: "initialized"}, false},
		{"failed after finishing time", SimulationResult{FinishedAt: time.Now(), ErrorMessage: "crashed"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.sim.Finished(); got != tt.want {
				t.Errorf("Finished() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestRunSummary tests summary bookkeeping.
func TestRunSummary(t *testing.T) {
	t.Parallel()

	s := NewRunSummary("demo")
	if _, err := uuid.Parse(s.RunID); err != nil {
		t.Fatalf("expected uuid run id, got %q", s.RunID)
	}

	ok := NewSubAreaReport("noord")
	ok.AddSimulation(SimulationResult{Name: "noord_70mm1u"})
	ok.AddSimulation(SimulationResult{Name: "noord_90mm1u"})
	ok.Succeed()

	bad := NewSubAreaReport("zuid")
	bad.Fail("commit_push", errors.New("boom"))

	interrupted := NewSubAreaReport("west")
	interrupted.Fail("simulate", context.Canceled)

	s.Add(ok)
	s.Add(bad)
	s.Add(interrupted)
	s.Finish()

	if s.Succeeded != 1 || s.Failed != 2 {
		t.Errorf("got %d succeeded / %d failed", s.Succeeded, s.Failed)
	}
	if !s.HasFailures() {
		t.Error("expected HasFailures")
	}
	if !s.Cancelled {
		t.Error("expected run to be marked cancelled")
	}
	if s.SimulationCount() != 2 {
		t.Errorf("expected 2 simulations, got %d", s.SimulationCount())
	}

	failures := s.Failures()
	if len(failures) != 2 || failures[0].Name != "zuid" || failures[1].Name != "west" {
		t.Errorf("unexpected failures %v", failures)
	}
	if s.Duration() < 0 {
		t.Error("expected non-negative duration")
	}
}

// TestParseOutcome tests outcome parsing.
func TestParseOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Outcome
	}{
		{"succeeded", OutcomeSucceeded},
		{"failed", OutcomeFailed},
		{"pending", OutcomePending},
		{"", OutcomePending},
		{"bogus", OutcomePending},
	}

	for _, tt := range tests {
		if got := ParseOutcome(tt.in); got != tt.want {
			t.Errorf("ParseOutcome(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got := tt.want.IsFinal(); got != (tt.want != OutcomePending) {
			t.Errorf("%q.IsFinal() = %v", tt.want, got)
		}
	}
}
