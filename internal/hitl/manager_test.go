package hitl

import (
	"context"
	"testing"
	"time"
)

func newReq(id string, ttl int) *Request {
	return &Request{
		ID:           id,
		CreatedAt:    time.Now().UTC(),
		TTLSeconds:   ttl,
		ToolCategory: "fs",
		ToolName:     "write",
	}
}

func TestSubmit_Approved(t *testing.T) {
	mgr := NewManager(NewBus())
	req := newReq("req-1", 5)

	var status Status
	var err error
	done := make(chan struct{})
	go func() {
		status, err = mgr.Submit(context.Background(), req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	pending := mgr.ListPending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(pending))
	}

	if err := mgr.Decide("req-1", true, "admin", "looks fine"); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	<-done
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if status != StatusApproved {
		t.Errorf("status = %v, want approved", status)
	}
}

func TestSubmit_Rejected(t *testing.T) {
	mgr := NewManager(NewBus())
	req := newReq("req-2", 5)

	done := make(chan struct{})
	var status Status
	go func() {
		status, _ = mgr.Submit(context.Background(), req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	if err := mgr.Decide("req-2", false, "admin", "too risky"); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	<-done
	if status != StatusRejected {
		t.Errorf("status = %v, want rejected", status)
	}
}

func TestSubmit_Expires(t *testing.T) {
	mgr := NewManager(NewBus())
	req := newReq("req-3", 1)

	status, err := mgr.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if status != StatusExpired {
		t.Errorf("status = %v, want expired", status)
	}

	if err := mgr.Decide("req-3", true, "admin", "too late"); err != ErrNotFound {
		t.Errorf("Decide after expiry = %v, want ErrNotFound", err)
	}
}

func TestSubmit_ContextCancelled(t *testing.T) {
	mgr := NewManager(NewBus())
	req := newReq("req-4", 60)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var err error
	go func() {
		_, err = mgr.Submit(ctx, req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
	if err == nil {
		t.Error("expected context cancellation error")
	}
}

func TestDecide_AlreadyResolved(t *testing.T) {
	mgr := NewManager(NewBus())
	req := newReq("req-5", 5)
	go func() { mgr.Submit(context.Background(), req) }() //nolint:errcheck
	time.Sleep(20 * time.Millisecond)

	if err := mgr.Decide("req-5", true, "admin", "ok"); err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	if err := mgr.Decide("req-5", true, "admin", "again"); err != ErrNotFound {
		t.Errorf("second Decide = %v, want ErrNotFound", err)
	}
}

func TestTTLBoundary(t *testing.T) {
	req := newReq("req-6", 1)
	if req.Expired(req.CreatedAt.Add(500 * time.Millisecond)) {
		t.Error("should not be expired before ttl")
	}
	if !req.Expired(req.CreatedAt.Add(1100 * time.Millisecond)) {
		t.Error("should be expired after ttl")
	}
}

func TestSubscribeWithSnapshot_IncludesAlreadyPending(t *testing.T) {
	mgr := NewManager(NewBus())
	req := newReq("req-8", 60)

	done := make(chan struct{})
	go func() {
		_, _ = mgr.Submit(context.Background(), req)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)

	sub, snapshot := mgr.SubscribeWithSnapshot()
	if len(snapshot) != 1 || snapshot[0].ID != "req-8" {
		t.Fatalf("snapshot = %+v, want [req-8]", snapshot)
	}

	if err := mgr.Decide("req-8", true, "admin", "ok"); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	<-done

	select {
	case evt := <-sub:
		if evt.Type != "updated" || evt.Request.ID != "req-8" {
			t.Errorf("event = %+v, want updated req-8", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for updated event")
	}
}

func TestShutdown_CancelsPending(t *testing.T) {
	mgr := NewManager(NewBus())
	req := newReq("req-7", 60)

	done := make(chan struct{})
	var status Status
	go func() {
		status, _ = mgr.Submit(context.Background(), req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	mgr.Shutdown()
	<-done
	if status != StatusRejected {
		t.Errorf("status = %v, want rejected after shutdown", status)
	}
}
