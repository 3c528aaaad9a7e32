package plan

import (
	"context"
	"sync"
	"testing"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeDispatcher) DispatchTask(ctx context.Context, category, name string, params map[string]any, requireHITL *bool) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, category+"."+name)
	f.mu.Unlock()
	if f.fail[category+"."+name] {
		return nil, errTaskFailure
	}
	out := map[string]any{"bytes_written": float64(len(category) + len(name))}
	return out, nil
}

var errTaskFailure = &taskError{"synthetic failure"}

type taskError struct{ msg string }

func (e *taskError) Error() string { return e.msg }

func TestExecute_RunsLevelsInOrderAndCompletes(t *testing.T) {
	tasks := []*Task{
		{ID: "A", ToolCategory: "fs", ToolName: "write"},
		{ID: "B", ToolCategory: "fs", ToolName: "write", DependsOn: []string{"A"}, Params: map[string]any{"content": "{{task:A.bytes_written}}"}},
	}
	p, err := New("p1", "test", FailureStop, tasks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fd := &fakeDispatcher{}
	ex := NewExecutor(fd)
	if err := ex.Execute(context.Background(), p); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if p.Status != PlanCompleted {
		t.Errorf("Status = %v, want completed", p.Status)
	}
	counts := p.Counts()
	if counts.Completed != 2 {
		t.Errorf("Completed = %d, want 2", counts.Completed)
	}
}

func TestExecute_StopPolicyHaltsRemainingLevels(t *testing.T) {
	tasks := []*Task{
		{ID: "A", ToolCategory: "fs", ToolName: "write"},
		{ID: "B", ToolCategory: "fs", ToolName: "read", DependsOn: []string{"A"}},
	}
	p, err := New("p1", "test", FailureStop, tasks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fd := &fakeDispatcher{fail: map[string]bool{"fs.write": true}}
	ex := NewExecutor(fd)
	if err := ex.Execute(context.Background(), p); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if p.Status != PlanFailed {
		t.Errorf("Status = %v, want failed", p.Status)
	}
	bTask, _ := p.Task("B")
	if bTask.Status != TaskSkipped {
		t.Errorf("B status = %v, want skipped (stop policy must transition pending tasks to skipped)", bTask.Status)
	}
}

func TestExecute_SkipDependentsMarksDownstreamSkipped(t *testing.T) {
	tasks := []*Task{
		{ID: "A", ToolCategory: "fs", ToolName: "write"},
		{ID: "B", ToolCategory: "fs", ToolName: "read", DependsOn: []string{"A"}},
		{ID: "C", ToolCategory: "fs", ToolName: "list"},
	}
	p, err := New("p1", "test", FailureSkipDependents, tasks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fd := &fakeDispatcher{fail: map[string]bool{"fs.write": true}}
	ex := NewExecutor(fd)
	if err := ex.Execute(context.Background(), p); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	bTask, _ := p.Task("B")
	cTask, _ := p.Task("C")
	if bTask.Status != TaskSkipped {
		t.Errorf("B status = %v, want skipped", bTask.Status)
	}
	if cTask.Status != TaskCompleted {
		t.Errorf("C status = %v, want completed (independent of failed A)", cTask.Status)
	}
}

func TestResolve_ByIDAndUniqueName(t *testing.T) {
	p1, _ := New("p1", "deploy", FailureStop, []*Task{{ID: "A"}})
	p2, _ := New("p2", "deploy-2", FailureStop, []*Task{{ID: "A"}})
	ex := NewExecutor(&fakeDispatcher{})
	ex.Register(p1)
	ex.Register(p2)

	got, err := ex.Resolve("p1")
	if err != nil || got.ID != "p1" {
		t.Fatalf("Resolve by id: %v, %v", got, err)
	}
	got, err = ex.Resolve("deploy-2")
	if err != nil || got.ID != "p2" {
		t.Fatalf("Resolve by name: %v, %v", got, err)
	}
	if _, err := ex.Resolve("missing"); err == nil {
		t.Error("expected not_found for unknown ref")
	}
}

func TestResolve_AmbiguousNameFails(t *testing.T) {
	p1, _ := New("p1", "deploy", FailureStop, []*Task{{ID: "A"}})
	p2, _ := New("p2", "deploy", FailureStop, []*Task{{ID: "A"}})
	ex := NewExecutor(&fakeDispatcher{})
	ex.Register(p1)
	ex.Register(p2)

	if _, err := ex.Resolve("deploy"); err == nil {
		t.Error("expected ambiguous name to fail")
	}
}
