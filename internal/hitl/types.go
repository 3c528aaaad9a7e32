// Package hitl implements the human-in-the-loop approval table: a
// thread-safe pending-request store with a rendezvous channel per request,
// so a suspended caller is woken by message passing rather than a shared
// flag.
package hitl

import (
	"encoding/json"
	"errors"
	"time"
)

// Status is the HITL request state machine. A request leaves Pending at
// most once.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Request is one pending (or resolved) approval, keyed by its id which
// equals the originating invocation's id.
type Request struct {
	ID                string          `json:"id"`
	CreatedAt         time.Time       `json:"created_at"`
	TTLSeconds        int             `json:"ttl_seconds"`
	ToolCategory      string          `json:"tool_category"`
	ToolName          string          `json:"tool_name"`
	PolicyRuleMatched string          `json:"policy_rule_matched,omitempty"`
	RequestParams     json.RawMessage `json:"request_params"` // pre-resolution form
	RequestContext    map[string]any  `json:"request_context,omitempty"`
	Status            Status          `json:"status"`
	ReviewedBy        string          `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time      `json:"reviewed_at,omitempty"`
	ReviewerNote      string          `json:"reviewer_note,omitempty"`
}

// Expired reports whether the request's TTL has elapsed as of now. Expiry
// is authoritative: once true, no later Decide call may change the status.
func (r *Request) Expired(now time.Time) bool {
	ttl := time.Duration(r.TTLSeconds) * time.Second
	return now.Sub(r.CreatedAt) >= ttl
}

// ErrNotFound is returned by Decide when the id is absent or already
// resolved out of pending.
var ErrNotFound = errors.New("hitl request not found or already decided")
