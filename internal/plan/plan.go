// Package plan implements the Plan Executor: a small DAG engine that
// validates task graphs via Kahn's algorithm, runs independent tasks
// concurrently level-by-level, resolves inter-task {{task:...}} references,
// and applies one of three failure policies.
package plan

import (
	"context"
	"time"

	"github.com/hostbridge/hostbridge/internal/errs"
)

// FailurePolicy governs how a plan reacts to a task failure.
type FailurePolicy string

const (
	FailureStop           FailurePolicy = "stop"
	FailureSkipDependents FailurePolicy = "skip_dependents"
	FailureContinue       FailurePolicy = "continue"
)

// TaskStatus is a task's lifecycle state.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// PlanStatus is a plan's lifecycle state.
type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanRunning   PlanStatus = "running"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
	PlanCancelled PlanStatus = "cancelled"
)

// Task is one node of a Plan's DAG.
type Task struct {
	ID           string
	Name         string
	ToolCategory string
	ToolName     string
	Params       map[string]any
	DependsOn    []string
	RequireHITL  *bool
	OnFailure    FailurePolicy // overrides the plan default when set

	Level     int
	Status    TaskStatus
	Output    any
	Error     string
	StartedAt *time.Time
	EndedAt   *time.Time
}

// Plan is an in-memory DAG of Tasks submitted to the executor.
type Plan struct {
	ID               string
	Name             string
	OnFailureDefault FailurePolicy
	Status           PlanStatus
	Tasks            []*Task // ordered by topological level

	byID   map[string]*Task
	levels [][]*Task
}

// TaskCounts summarizes terminal task status for a plan's status report.
type TaskCounts struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Counts tallies the current status of every task in the plan.
func (p *Plan) Counts() TaskCounts {
	var c TaskCounts
	for _, t := range p.Tasks {
		switch t.Status {
		case TaskPending:
			c.Pending++
		case TaskRunning:
			c.Running++
		case TaskCompleted:
			c.Completed++
		case TaskFailed:
			c.Failed++
		case TaskSkipped:
			c.Skipped++
		}
	}
	return c
}

// New validates the task graph (uniqueness, reference integrity, acyclicity)
// via Kahn's algorithm, assigns each task its topological level, and
// returns the constructed Plan.
func New(id, name string, onFailureDefault FailurePolicy, tasks []*Task) (*Plan, error) {
	if onFailureDefault == "" {
		onFailureDefault = FailureStop
	}

	byID := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		if _, dup := byID[t.ID]; dup {
			return nil, errs.Newf(errs.KindInvalidParam, "duplicate task id %q", t.ID)
		}
		byID[t.ID] = t
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, errs.Newf(errs.KindInvalidParam, "task %q depends on unknown task %q", t.ID, dep)
			}
		}
	}

	levels, err := assignLevels(tasks, byID)
	if err != nil {
		return nil, err
	}

	for _, t := range tasks {
		t.Status = TaskPending
	}

	ordered := make([]*Task, 0, len(tasks))
	var levelGroups [][]*Task
	for lvl := 0; lvl < len(levels); lvl++ {
		levelGroups = append(levelGroups, levels[lvl])
		ordered = append(ordered, levels[lvl]...)
	}

	return &Plan{
		ID:               id,
		Name:             name,
		OnFailureDefault: onFailureDefault,
		Status:           PlanPending,
		Tasks:            ordered,
		byID:             byID,
		levels:           levelGroups,
	}, nil
}

// assignLevels implements Kahn's algorithm: repeatedly peel off tasks whose
// dependencies have all been assigned a level, giving each task the
// smallest level number exceeding every dependency's level. A non-empty
// remainder after the queue drains indicates a cycle.
func assignLevels(tasks []*Task, byID map[string]*Task) ([][]*Task, error) {
	indegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		indegree[t.ID] = len(t.DependsOn)
		for _, dep := range t.DependsOn {
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	level := make(map[string]int, len(tasks))
	var queue []string
	for _, t := range tasks {
		if indegree[t.ID] == 0 {
			queue = append(queue, t.ID)
			level[t.ID] = 0
		}
	}

	processed := 0
	var maxLevel int
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		if level[id] > maxLevel {
			maxLevel = level[id]
		}
		for _, depID := range dependents[id] {
			if level[depID] < level[id]+1 {
				level[depID] = level[id] + 1
			}
			indegree[depID]--
			if indegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}

	if processed != len(tasks) {
		return nil, errs.New(errs.KindInvalidParam, "task graph contains a cycle")
	}

	levels := make([][]*Task, maxLevel+1)
	for _, t := range tasks {
		t.Level = level[t.ID]
		levels[t.Level] = append(levels[t.Level], t)
	}
	return levels, nil
}

// Task looks up a task by id.
func (p *Plan) Task(id string) (*Task, bool) {
	t, ok := p.byID[id]
	return t, ok
}

// dependents returns the transitive set of task ids reachable from id via
// depends_on (i.e. tasks that depend on id, directly or indirectly).
func (p *Plan) dependents(id string) map[string]bool {
	out := make(map[string]bool)
	var visit func(string)
	visit = func(cur string) {
		for _, t := range p.Tasks {
			for _, dep := range t.DependsOn {
				if dep == cur && !out[t.ID] {
					out[t.ID] = true
					visit(t.ID)
				}
			}
		}
	}
	visit(id)
	return out
}
