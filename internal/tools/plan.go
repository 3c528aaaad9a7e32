package tools

import (
	"context"

	"github.com/google/uuid"

	"github.com/hostbridge/hostbridge/internal/errs"
	"github.com/hostbridge/hostbridge/internal/plan"
)

// Plan exposes the Plan Executor's create/execute/status/get operations
// as dispatchable tools.
type Plan struct {
	executor *plan.Executor
}

// NewPlan creates a Plan handler set over executor.
func NewPlan(executor *plan.Executor) *Plan {
	return &Plan{executor: executor}
}

func parseTasks(raw []any) ([]*plan.Task, error) {
	tasks := make([]*plan.Task, 0, len(raw))
	for _, item := range raw {
		tm, ok := item.(map[string]any)
		if !ok {
			return nil, errs.New(errs.KindInvalidParam, "each task must be an object")
		}
		id, _ := tm["id"].(string)
		if id == "" {
			return nil, errs.New(errs.KindInvalidParam, "task.id is required")
		}
		category, _ := tm["tool_category"].(string)
		name, _ := tm["tool_name"].(string)
		t := &plan.Task{
			ID:           id,
			Name:         asString(tm["name"]),
			ToolCategory: category,
			ToolName:     name,
			Params:       asMap(tm["params"]),
			DependsOn:    stringSlice(tm["depends_on"]),
		}
		if v, ok := tm["require_hitl"].(bool); ok {
			t.RequireHITL = &v
		}
		if v, ok := tm["on_failure"].(string); ok {
			t.OnFailure = plan.FailurePolicy(v)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Create validates a task graph and registers it for later execution.
func (p *Plan) Create(_ context.Context, params map[string]any) (any, error) {
	name, _ := params["name"].(string)
	onFailure := plan.FailurePolicy(asString(params["on_failure_default"]))

	rawTasks, _ := params["tasks"].([]any)
	tasks, err := parseTasks(rawTasks)
	if err != nil {
		return nil, err
	}

	pl, err := plan.New(uuid.NewString(), name, onFailure, tasks)
	if err != nil {
		return nil, err
	}
	p.executor.Register(pl)
	return map[string]any{"plan_id": pl.ID, "status": pl.Status}, nil
}

// Execute runs a previously created plan (by id or unique name) to
// completion or cancellation.
func (p *Plan) Execute(ctx context.Context, params map[string]any) (any, error) {
	ref, err := stringParam(params, "plan_id")
	if err != nil {
		return nil, err
	}
	pl, err := p.executor.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if err := p.executor.Execute(ctx, pl); err != nil {
		return nil, errs.Newf(errs.KindInternal, "execute plan: %v", err)
	}
	return statusPayload(pl), nil
}

// Status reports a plan's current task counts and terminal state.
func (p *Plan) Status(_ context.Context, params map[string]any) (any, error) {
	ref, err := stringParam(params, "plan_id")
	if err != nil {
		return nil, err
	}
	pl, err := p.executor.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return statusPayload(pl), nil
}

// Get returns the full task list (including per-task output/error) for a
// plan.
func (p *Plan) Get(_ context.Context, params map[string]any) (any, error) {
	ref, err := stringParam(params, "plan_id")
	if err != nil {
		return nil, err
	}
	pl, err := p.executor.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return pl, nil
}

func statusPayload(pl *plan.Plan) map[string]any {
	return map[string]any{
		"plan_id": pl.ID,
		"status":  pl.Status,
		"counts":  pl.Counts(),
	}
}
