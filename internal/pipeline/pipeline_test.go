package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/threedibatch/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, report *model.SubAreaReport) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, report *model.SubAreaReport) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, report)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	p := New()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if p.StepCount() != 0 {
		t.Errorf("expected 0 steps, got %d", p.StepCount())
	}
	if p.logger == nil {
		t.Error("expected default logger")
	}
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "a"})
	p.AddSteps(&mockStep{name: "b"}, &mockStep{name: "c"})

	names := p.StepNames()
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Errorf("unexpected step names %v", names)
	}
}

// TestPipelineExecute tests step execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes steps in order and succeeds", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *model.SubAreaReport) error {
				order = append(order, name)
				return nil
			}}
		}

		p := New()
		p.AddSteps(record("first"), record("second"), record("third"))

		report := model.NewSubAreaReport("noord")
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(order) != 3 || order[0] != "first" || order[2] != "third" {
			t.Errorf("unexpected order %v", order)
		}
		if report.Outcome != model.OutcomeSucceeded {
			t.Errorf("expected succeeded, got %q", report.Outcome)
		}
		if len(report.PerformedSteps) != 3 {
			t.Errorf("expected 3 performed steps, got %v", report.PerformedSteps)
		}
	})

	t.Run("stops at the first error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		first := &mockStep{name: "first"}
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *model.SubAreaReport) error { return boom }}
		never := &mockStep{name: "never"}

		p := New()
		p.AddSteps(first, failing, never)

		report := model.NewSubAreaReport("noord")
		err := p.Execute(context.Background(), report)
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if never.callCount != 0 {
			t.Error("step after failure must not run")
		}
		if report.FailedStep != "failing" || report.ErrorMessage != "boom" {
			t.Errorf("unexpected failure %q / %q", report.FailedStep, report.ErrorMessage)
		}
		if len(report.PerformedSteps) != 1 || report.PerformedSteps[0] != "first" {
			t.Errorf("unexpected performed steps %v", report.PerformedSteps)
		}
	})

	t.Run("cancelled context stops before the next step", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		first := &mockStep{name: "first", doFunc: func(context.Context, *model.SubAreaReport) error {
			cancel()
			return nil
		}}
		second := &mockStep{name: "second"}

		p := New()
		p.AddSteps(first, second)

		report := model.NewSubAreaReport("noord")
		err := p.Execute(ctx, report)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if second.callCount != 0 {
			t.Error("second step must not run")
		}
		if !report.Cancelled || report.FailedStep != "second" {
			t.Errorf("unexpected report %+v", report)
		}
	})
}
