// Package dispatch implements the single pipeline every invocation passes
// through regardless of which adapter (REST or MCP) it arrived on:
// descriptor lookup, policy evaluation, HITL suspension, template
// expansion, schema validation, handler invocation, and audit capture.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hostbridge/hostbridge/internal/audit"
	"github.com/hostbridge/hostbridge/internal/errs"
	"github.com/hostbridge/hostbridge/internal/hitl"
	"github.com/hostbridge/hostbridge/internal/policy"
	"github.com/hostbridge/hostbridge/internal/registry"
	"github.com/hostbridge/hostbridge/internal/store"
	"github.com/hostbridge/hostbridge/internal/template"
)

// Invocation is the canonical unit of work handed to the Dispatch Engine by
// an adapter.
type Invocation struct {
	ID            string
	Category      string
	Name          string
	Params        map[string]any
	Protocol      string // "rest", "mcp", or "plan"
	CallerContext map[string]any

	// RequireHITL, when non-nil, replaces the descriptor's
	// RequiresHITLDefault for this one invocation (used by the Plan
	// Executor's per-task require_hitl gate). true also forces approval
	// whatever rule matched; false does not override a matching rule.
	RequireHITL *bool
}

// MaxResponseSummaryBytes bounds the audit entry's response_summary field.
const MaxResponseSummaryBytes = 4096

// Engine wires the registry, policy engine, HITL manager, template
// resolver, and audit logger into the uniform dispatch pipeline.
type Engine struct {
	registry *registry.Registry
	policy   *policy.Engine
	hitl     *hitl.Manager
	audit    *audit.Logger
	secrets  template.SecretLookup
}

// New creates an Engine. secrets may be nil if no Secrets Store is
// configured, in which case any `{{secret:...}}` placeholder fails.
func New(reg *registry.Registry, pol *policy.Engine, hm *hitl.Manager, al *audit.Logger, secrets template.SecretLookup) *Engine {
	return &Engine{registry: reg, policy: pol, hitl: hm, audit: al, secrets: secrets}
}

// DispatchTask adapts the Plan Executor's narrower call shape onto
// Dispatch, tagging the invocation with protocol "plan" for audit.
func (e *Engine) DispatchTask(ctx context.Context, category, name string, params map[string]any, requireHITL *bool) (any, error) {
	return e.Dispatch(ctx, Invocation{Category: category, Name: name, Params: params, Protocol: "plan", RequireHITL: requireHITL})
}

// Dispatch runs inv through the full pipeline and returns the handler's
// result or a classified error. The audit entry is always written before
// this method returns.
func (e *Engine) Dispatch(ctx context.Context, inv Invocation) (any, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}

	desc, ok := e.registry.Get(inv.Category, inv.Name)
	if !ok {
		cerr := errs.Newf(errs.KindNotFound, "unknown tool %s.%s", inv.Category, inv.Name)
		e.recordAudit(ctx, inv, "error", time.Now(), nil, cerr)
		return nil, cerr
	}

	start := time.Now()

	requiresHITLDefault := desc.RequiresHITLDefault
	if inv.RequireHITL != nil {
		requiresHITLDefault = *inv.RequireHITL
	}
	decision := e.policy.Evaluate(inv.Category, inv.Name, inv.Params, requiresHITLDefault)
	if inv.RequireHITL != nil && *inv.RequireHITL {
		decision.Action = policy.ActionRequireApproval
	}

	switch decision.Action {
	case policy.ActionBlock:
		cerr := errs.New(errs.KindBlocked, decision.Reason)
		e.recordAudit(ctx, inv, "blocked", start, nil, cerr)
		return nil, cerr

	case policy.ActionRequireApproval:
		if err := e.runHITL(ctx, inv, decision); err != nil {
			return nil, err
		}
		return e.invokeAndRecord(ctx, inv, desc, start, true)
	}

	return e.invokeAndRecord(ctx, inv, desc, start, false)
}

// runHITL parks inv in the HITL Manager and blocks until a decision,
// expiry, or cancellation. A nil return means the invocation was approved
// and should proceed to handler execution; any non-nil error is already
// the final result of Dispatch (audit has been written).
func (e *Engine) runHITL(ctx context.Context, inv Invocation, decision policy.Decision) error {
	rawParams, err := json.Marshal(inv.Params)
	if err != nil {
		rawParams = json.RawMessage("{}")
	}

	req := &hitl.Request{
		ID:                inv.ID,
		CreatedAt:         time.Now(),
		TTLSeconds:        decision.TTLSeconds,
		ToolCategory:      inv.Category,
		ToolName:          inv.Name,
		PolicyRuleMatched: decision.Reason,
		RequestParams:     rawParams,
		RequestContext:    inv.CallerContext,
		Status:            hitl.StatusPending,
	}

	start := time.Now()
	status, err := e.hitl.Submit(ctx, req)
	if err != nil {
		// Caller cancellation: no handler call, classify locally.
		cerr := errs.New(errs.KindInternal, "invocation cancelled while awaiting approval")
		e.recordAudit(ctx, inv, "error", start, nil, cerr)
		return cerr
	}

	switch status {
	case hitl.StatusApproved:
		return nil
	case hitl.StatusRejected:
		cerr := errs.New(errs.KindBlocked, "request was rejected by reviewer")
		e.recordAudit(ctx, inv, "hitl_rejected", start, nil, cerr)
		return cerr
	case hitl.StatusExpired:
		cerr := errs.New(errs.KindTimeout, "approval request expired before a decision was made")
		e.recordAudit(ctx, inv, "hitl_expired", start, nil, cerr)
		return cerr
	default:
		cerr := errs.Newf(errs.KindInternal, "unexpected hitl status %q", status)
		e.recordAudit(ctx, inv, "error", start, nil, cerr)
		return cerr
	}
}

// invokeAndRecord expands templates, validates input, runs the handler, and
// writes the terminal audit entry.
func (e *Engine) invokeAndRecord(ctx context.Context, inv Invocation, desc *registry.Descriptor, start time.Time, approved bool) (any, error) {
	resolver := template.New(e.secrets, nil)
	expanded, err := resolver.Expand(inv.Params)
	if err != nil {
		cerr := errs.Classify(err)
		e.recordAudit(ctx, inv, "error", start, nil, cerr)
		return nil, cerr
	}
	params, _ := expanded.(map[string]any)
	if params == nil {
		params = map[string]any{}
	}

	if err := desc.ValidateInput(params); err != nil {
		cerr := errs.Newf(errs.KindInvalidParam, "params failed schema validation: %v", err)
		e.recordAudit(ctx, inv, "error", start, nil, cerr)
		return nil, cerr
	}

	result, err := desc.Handler(ctx, params)
	if err != nil {
		cerr := errs.Classify(err)
		e.recordAudit(ctx, inv, "error", start, nil, cerr)
		return nil, cerr
	}

	status := "success"
	if approved {
		status = "hitl_approved"
	}
	e.recordAudit(ctx, inv, status, start, result, nil)
	return result, nil
}

func (e *Engine) recordAudit(ctx context.Context, inv Invocation, status string, start time.Time, result any, failure error) {
	if e.audit == nil {
		return
	}

	entry := &store.AuditEntry{
		ID:                     inv.ID,
		Timestamp:              time.Now(),
		Protocol:               inv.Protocol,
		ToolCategory:           inv.Category,
		ToolName:               inv.Name,
		Status:                 status,
		DurationMs:             time.Since(start).Milliseconds(),
		RequestParamsTemplate:  marshalParams(inv.Params),
		ResponseSummary:        summarize(result),
	}
	if failure != nil {
		msg := failure.Error()
		if ce, ok := failure.(*errs.Error); ok && ce.AuditMessage != "" {
			msg = ce.AuditMessage
		}
		entry.ErrorMessage = &msg
	}

	if err := e.audit.Record(ctx, entry); err != nil {
		// Audit write failure must not mask the original result/error, but
		// it is itself worth surfacing to operators.
		slog.Error("audit write failed", "invocation_id", inv.ID, "error", err)
	}
}

func marshalParams(params map[string]any) json.RawMessage {
	raw, err := json.Marshal(params)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}

func summarize(result any) string {
	if result == nil {
		return ""
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return ""
	}
	if len(raw) > MaxResponseSummaryBytes {
		return string(raw[:MaxResponseSummaryBytes])
	}
	return string(raw)
}
