package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/hostbridge/hostbridge/internal/audit"
	"github.com/hostbridge/hostbridge/internal/errs"
	"github.com/hostbridge/hostbridge/internal/hitl"
	"github.com/hostbridge/hostbridge/internal/policy"
	"github.com/hostbridge/hostbridge/internal/registry"
	"github.com/hostbridge/hostbridge/internal/store"
)

type fakeAuditStore struct {
	entries []*store.AuditEntry
}

func (f *fakeAuditStore) InsertAuditEntry(ctx context.Context, e *store.AuditEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAuditStore) QueryAuditEntries(ctx context.Context, filter store.AuditFilter) ([]store.AuditEntry, int, error) {
	return nil, 0, nil
}

func (f *fakeAuditStore) SweepAuditEntries(ctx context.Context, olderThanDays int) (int, error) {
	return 0, nil
}

func newTestEngine(t *testing.T, rules []policy.Rule, handler registry.Handler, requiresHITLDefault bool) (*Engine, *fakeAuditStore) {
	t.Helper()
	reg := registry.New()
	if err := reg.Register(registry.Descriptor{
		Category:            "fs",
		Name:                "write",
		Handler:             handler,
		RequiresHITLDefault: requiresHITLDefault,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	pol := policy.New(rules, 1)
	fa := &fakeAuditStore{}
	al := audit.NewLogger(fa, nil)
	hm := hitl.NewManager(nil)

	secrets := func(key string) (string, bool) {
		if key == "TOKEN" {
			return "secret-value", true
		}
		return "", false
	}

	return New(reg, pol, hm, al, secrets), fa
}

func TestDispatch_Allow_Success(t *testing.T) {
	e, fa := newTestEngine(t, nil, func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{"bytes_written": 5}, nil
	}, false)

	result, err := e.Dispatch(context.Background(), Invocation{Category: "fs", Name: "write", Params: map[string]any{"path": "a.txt"}, Protocol: "rest"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}
	if len(fa.entries) != 1 || fa.entries[0].Status != "success" {
		t.Fatalf("expected one success audit entry, got %+v", fa.entries)
	}
}

func TestDispatch_Block(t *testing.T) {
	rules := []policy.Rule{{Match: policy.Match{Category: "fs", Name: "write"}, Action: policy.ActionBlock, Reason: "blocked by rule"}}
	e, fa := newTestEngine(t, rules, func(ctx context.Context, params map[string]any) (any, error) {
		t.Fatal("handler should not be invoked when blocked")
		return nil, nil
	}, false)

	_, err := e.Dispatch(context.Background(), Invocation{Category: "fs", Name: "write", Params: map[string]any{}, Protocol: "rest"})
	ce, ok := err.(*errs.Error)
	if !ok || ce.Kind != errs.KindBlocked {
		t.Fatalf("expected blocked error, got %v", err)
	}
	if len(fa.entries) != 1 || fa.entries[0].Status != "blocked" {
		t.Fatalf("expected one blocked audit entry, got %+v", fa.entries)
	}
}

func TestDispatch_NotFound(t *testing.T) {
	e, _ := newTestEngine(t, nil, func(ctx context.Context, params map[string]any) (any, error) { return nil, nil }, false)

	_, err := e.Dispatch(context.Background(), Invocation{Category: "fs", Name: "missing", Protocol: "rest"})
	ce, ok := err.(*errs.Error)
	if !ok || ce.Kind != errs.KindNotFound {
		t.Fatalf("expected not_found error, got %v", err)
	}
}

func TestDispatch_HITLApproved(t *testing.T) {
	rules := []policy.Rule{{Match: policy.Match{Category: "fs", Name: "write"}, Action: policy.ActionRequireApproval, Reason: "needs review", TTLSeconds: 30}}
	e, fa := newTestEngine(t, rules, func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{"ok": true}, nil
	}, false)

	go func() {
		time.Sleep(20 * time.Millisecond)
		for _, r := range e.hitl.ListPending() {
			_ = e.hitl.Decide(r.ID, true, "admin", "looks fine")
		}
	}()

	result, err := e.Dispatch(context.Background(), Invocation{Category: "fs", Name: "write", Params: map[string]any{"path": "a.txt"}, Protocol: "rest"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}
	if len(fa.entries) != 1 || fa.entries[0].Status != "hitl_approved" {
		t.Fatalf("expected hitl_approved audit entry, got %+v", fa.entries)
	}
}

func TestDispatch_HITLExpired(t *testing.T) {
	rules := []policy.Rule{{Match: policy.Match{Category: "fs", Name: "write"}, Action: policy.ActionRequireApproval, Reason: "needs review", TTLSeconds: 1}}
	e, fa := newTestEngine(t, rules, func(ctx context.Context, params map[string]any) (any, error) {
		t.Fatal("handler should not run after expiry")
		return nil, nil
	}, false)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := e.Dispatch(ctx, Invocation{Category: "fs", Name: "write", Params: map[string]any{"path": "a.txt"}, Protocol: "rest"})
	ce, ok := err.(*errs.Error)
	if !ok || ce.Kind != errs.KindTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if len(fa.entries) != 1 || fa.entries[0].Status != "hitl_expired" {
		t.Fatalf("expected hitl_expired audit entry, got %+v", fa.entries)
	}
}

func TestDispatch_SecretExpansion(t *testing.T) {
	var seen map[string]any
	e, _ := newTestEngine(t, nil, func(ctx context.Context, params map[string]any) (any, error) {
		seen = params
		return map[string]any{}, nil
	}, false)

	_, err := e.Dispatch(context.Background(), Invocation{Category: "fs", Name: "write", Params: map[string]any{"path": "a.txt", "auth": "{{secret:TOKEN}}"}, Protocol: "rest"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if seen["auth"] != "secret-value" {
		t.Errorf("expected secret to be expanded before handler call, got %v", seen["auth"])
	}
}
