package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/threedibatch/internal/config"
	"github.com/nao1215/threedibatch/internal/model"
	"github.com/nao1215/threedibatch/internal/simulation"
	"github.com/nao1215/threedibatch/internal/threedi"
)

type fakePreparer struct {
	files []model.PreparedFile
	err   error
}

func (f *fakePreparer) Prepare(context.Context, string) ([]model.PreparedFile, error) {
	return f.files, f.err
}

type fakeWaiter struct {
	model   *threedi.ThreediModel
	err     error
	slug    string
	rev     int
	maxWait time.Duration
}

func (f *fakeWaiter) WaitForModel(_ context.Context, slug string, revision int, maxWait time.Duration) (*threedi.ThreediModel, error) {
	f.slug, f.rev, f.maxWait = slug, revision, maxWait
	return f.model, f.err
}

type fakeSimulator struct {
	requests []simulation.Request
	failOn   string
}

func (f *fakeSimulator) Run(_ context.Context, req simulation.Request) (*model.SimulationResult, error) {
	f.requests = append(f.requests, req)
	result := &model.SimulationResult{Name: req.Name, ModelID: req.ModelID, SimulationID: len(f.requests)}
	if req.Name == f.failOn {
		result.ErrorMessage = "crashed"
		return result, simulation.ErrSimulationCrashed
	}
	result.Status = threedi.StatusFinished
	result.FinishedAt = time.Now()
	return result, nil
}

type fixedCommitter struct{ rev int }

func (c fixedCommitter) CommitAndPush(context.Context, string) (int, error) { return c.rev, nil }

// TestWaitModelStep tests the wait step.
func TestWaitModelStep(t *testing.T) {
	t.Parallel()

	t.Run("records the model", func(t *testing.T) {
		t.Parallel()

		waiter := &fakeWaiter{model: &threedi.ThreediModel{ID: 11, Name: "demo-42"}}
		step := NewWaitModelStep(waiter, "demo", time.Minute)

		report := model.NewSubAreaReport("noord")
		report.Revision = 42
		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.ModelID != 11 || report.ModelName != "demo-42" {
			t.Errorf("unexpected report %+v", report)
		}
		if waiter.slug != "demo" || waiter.rev != 42 || waiter.maxWait != time.Minute {
			t.Errorf("unexpected wait arguments %q %d %v", waiter.slug, waiter.rev, waiter.maxWait)
		}
	})

	t.Run("no model in time", func(t *testing.T) {
		t.Parallel()

		step := NewWaitModelStep(&fakeWaiter{}, "demo", time.Minute)
		if err := step.Do(context.Background(), model.NewSubAreaReport("noord")); !errors.Is(err, ErrModelNotReady) {
			t.Errorf("expected ErrModelNotReady, got %v", err)
		}
	})
}

// TestSimulateStep tests the simulate step.
func TestSimulateStep(t *testing.T) {
	t.Parallel()

	scenario := config.Scenario{Name: "{subarea}_70mm1u", IntensityMMPerHour: 70, RainDuration: 3600}
	start := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	t.Run("requires a model", func(t *testing.T) {
		t.Parallel()

		step := NewSimulateStep(&fakeSimulator{}, scenario, "org", start)
		if err := step.Do(context.Background(), model.NewSubAreaReport("noord")); !errors.Is(err, ErrNoModel) {
			t.Errorf("expected ErrNoModel, got %v", err)
		}
	})

	t.Run("failed simulation is still recorded", func(t *testing.T) {
		t.Parallel()

		sim := &fakeSimulator{failOn: "noord_70mm1u"}
		step := NewSimulateStep(sim, scenario, "org", start, WithPostProcessing(false))

		report := model.NewSubAreaReport("noord")
		report.ModelID = 11
		err := step.Do(context.Background(), report)
		if !errors.Is(err, simulation.ErrSimulationCrashed) {
			t.Fatalf("expected ErrSimulationCrashed, got %v", err)
		}
		if len(report.Simulations) != 1 || report.Simulations[0].ErrorMessage == "" {
			t.Errorf("expected partial simulation in report, got %+v", report.Simulations)
		}
		if sim.requests[0].PostProcessing {
			t.Error("expected post-processing to be disabled")
		}
	})
}

// TestBuild tests assembling the standard pipeline.
func TestBuild(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Repository.Slug = "demo"
	cfg.Simulation.ModelMaxWait = 10 * time.Second
	start := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	t.Run("step order", func(t *testing.T) {
		t.Parallel()

		deps := Dependencies{
			Preparer:  &fakePreparer{},
			Committer: fixedCommitter{rev: 42},
			Waiter:    &fakeWaiter{},
			Simulator: &fakeSimulator{},
		}
		p := Build(cfg, deps, "org", start)

		want := []string{StepPrepare, StepCommitPush, StepWaitModel, StepSimulate, StepSimulate, StepSimulate}
		got := p.StepNames()
		if len(got) != len(want) {
			t.Fatalf("got steps %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("step %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("without preparer", func(t *testing.T) {
		t.Parallel()

		p := Build(cfg, Dependencies{Committer: fixedCommitter{}, Waiter: &fakeWaiter{}, Simulator: &fakeSimulator{}}, "org", start)
		if p.StepNames()[0] != StepCommitPush {
			t.Errorf("expected commit_push first, got %v", p.StepNames())
		}
	})

	t.Run("runs the three default scenarios", func(t *testing.T) {
		t.Parallel()

		sim := &fakeSimulator{}
		files := []model.PreparedFile{{Kind: "dem", Target: "rasters/dem.tif"}}
		deps := Dependencies{
			Preparer:  &fakePreparer{files: files},
			Committer: fixedCommitter{rev: 42},
			Waiter:    &fakeWaiter{model: &threedi.ThreediModel{ID: 11}},
			Simulator: sim,
		}

		report := model.NewSubAreaReport("noord")
		if err := Build(cfg, deps, "org", start).Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantNames := []string{"noord_70mm1u", "noord_90mm1u", "noord_160mm2u"}
		wantDurations := []int{7200, 7200, 10800}
		if len(sim.requests) != 3 {
			t.Fatalf("expected 3 simulations, got %d", len(sim.requests))
		}
		for i, req := range sim.requests {
			if req.Name != wantNames[i] || req.Duration != wantDurations[i] {
				t.Errorf("request %d = %s/%d, want %s/%d", i, req.Name, req.Duration, wantNames[i], wantDurations[i])
			}
			if req.ModelID != 11 || req.Organisation != "org" || !req.Start.Equal(start) || !req.PostProcessing {
				t.Errorf("unexpected request %+v", req)
			}
		}
		if report.Revision != 42 || len(report.PreparedFiles) != 1 || len(report.Simulations) != 3 {
			t.Errorf("unexpected report %+v", report)
		}
	})

	t.Run("prepare failure stops before commit", func(t *testing.T) {
		t.Parallel()

		committer := &failingCommitter{}
		deps := Dependencies{
			Preparer:  &fakePreparer{err: errors.New("source raster not found")},
			Committer: committer,
			Waiter:    &fakeWaiter{},
			Simulator: &fakeSimulator{},
		}

		report := model.NewSubAreaReport("noord")
		if err := Build(cfg, deps, "org", start).Execute(context.Background(), report); err == nil {
			t.Fatal("expected error")
		}
		if report.FailedStep != StepPrepare || len(committer.messages) != 0 {
			t.Errorf("unexpected state %+v / %v", report, committer.messages)
		}
	})
}
