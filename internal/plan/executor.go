package plan

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hostbridge/hostbridge/internal/errs"
	"github.com/hostbridge/hostbridge/internal/template"
)

// Dispatcher is the subset of the Dispatch Engine the executor needs. It is
// defined here, rather than imported directly, so plan has no compile-time
// dependency on dispatch's Invocation shape.
type Dispatcher interface {
	DispatchTask(ctx context.Context, category, name string, params map[string]any, requireHITL *bool) (any, error)
}

// Executor runs a Plan's tasks level-by-level, resolving {{task:...}}
// references against completed outputs and honoring each task's failure
// policy.
type Executor struct {
	dispatcher Dispatcher

	mu    sync.Mutex
	plans map[string]*Plan
}

// NewExecutor creates an Executor bound to dispatcher.
func NewExecutor(dispatcher Dispatcher) *Executor {
	return &Executor{dispatcher: dispatcher, plans: make(map[string]*Plan)}
}

// Register adds p to the executor's resolvable set (by id and, if unique,
// by name) so Resolve can later find it.
func (ex *Executor) Register(p *Plan) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.plans[p.ID] = p
}

// Resolve accepts either a plan id or a name. A name resolves only when
// exactly one registered plan has that name.
func (ex *Executor) Resolve(ref string) (*Plan, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if p, ok := ex.plans[ref]; ok {
		return p, nil
	}
	var matches []*Plan
	for _, p := range ex.plans {
		if p.Name == ref {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return nil, errs.Newf(errs.KindNotFound, "no plan matches %q", ref)
	}
	if len(matches) > 1 {
		return nil, errs.Newf(errs.KindInvalidParam, "plan name %q is ambiguous across %d plans", ref, len(matches))
	}
	return matches[0], nil
}

// Execute runs p to completion (or until cancelled/stopped), mutating task
// and plan status in place.
func (ex *Executor) Execute(ctx context.Context, p *Plan) error {
	p.Status = PlanRunning

	var mu sync.Mutex
	stopped := false
	for _, level := range p.levels {
		mu.Lock()
		halt := stopped
		mu.Unlock()
		if halt {
			break
		}
		if err := ctx.Err(); err != nil {
			ex.cancelRemaining(p)
			p.Status = PlanCancelled
			return nil
		}

		runnable := ex.filterSkipped(p, level)
		g, gCtx := errgroup.WithContext(ctx)
		for _, t := range runnable {
			t := t
			g.Go(func() error {
				ex.runTask(gCtx, p, t)
				if t.Status == TaskFailed {
					policy := t.OnFailure
					if policy == "" {
						policy = p.OnFailureDefault
					}
					mu.Lock()
					switch policy {
					case FailureStop:
						stopped = true
					case FailureSkipDependents:
						ex.markSkipped(p, p.dependents(t.ID))
					}
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	if stopped {
		ex.cancelRemaining(p)
	}
	p.Status = terminalStatus(p, stopped)
	return nil
}

func terminalStatus(p *Plan, stopped bool) PlanStatus {
	counts := p.Counts()
	if stopped {
		return PlanFailed
	}
	if counts.Failed > 0 {
		return PlanFailed
	}
	return PlanCompleted
}

// filterSkipped drops tasks already marked skipped (by an earlier
// skip_dependents decision) from this level's runnable set.
func (ex *Executor) filterSkipped(p *Plan, level []*Task) []*Task {
	var out []*Task
	for _, t := range level {
		if t.Status == TaskSkipped {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (ex *Executor) markSkipped(p *Plan, ids map[string]bool) {
	for id := range ids {
		if t, ok := p.Task(id); ok && t.Status == TaskPending {
			t.Status = TaskSkipped
		}
	}
}

func (ex *Executor) cancelRemaining(p *Plan) {
	for _, t := range p.Tasks {
		if t.Status == TaskPending {
			t.Status = TaskSkipped
		}
	}
}

// runTask resolves {{task:...}} references, dispatches the invocation, and
// records the task's terminal state.
func (ex *Executor) runTask(ctx context.Context, p *Plan, t *Task) {
	now := time.Now().UTC()
	t.StartedAt = &now
	t.Status = TaskRunning

	lookup := func(id string) (any, bool) {
		upstream, ok := p.Task(id)
		if !ok || upstream.Status != TaskCompleted {
			return nil, false
		}
		return upstream.Output, true
	}
	resolver := template.New(nil, lookup)
	expanded, err := resolver.Expand(t.Params)
	if err != nil {
		ex.fail(t, err)
		return
	}
	params, _ := expanded.(map[string]any)
	if params == nil {
		params = map[string]any{}
	}

	result, err := ex.dispatcher.DispatchTask(ctx, t.ToolCategory, t.ToolName, params, t.RequireHITL)
	if err != nil {
		ex.fail(t, err)
		return
	}

	endedAt := time.Now().UTC()
	t.EndedAt = &endedAt
	t.Output = result
	t.Status = TaskCompleted
}

func (ex *Executor) fail(t *Task, err error) {
	endedAt := time.Now().UTC()
	t.EndedAt = &endedAt
	t.Error = err.Error()
	t.Status = TaskFailed
}
