// Package store defines the durable data model and persistence interfaces
// shared by the audit store and the memory graph. Plans and HITL requests
// are in-memory only and live in their owning packages.
package store

import (
	"encoding/json"
	"time"
)

// AuditEntry is an append-only record of a completed dispatch. Exactly one
// is written per invocation that leaves the dispatch engine; there are no
// updates after write.
type AuditEntry struct {
	ID                    string          `json:"id"`
	Timestamp             time.Time       `json:"timestamp"`
	Protocol              string          `json:"protocol"`
	ToolCategory          string          `json:"tool_category"`
	ToolName              string          `json:"tool_name"`
	Status                string          `json:"status"`
	DurationMs            int64           `json:"duration_ms"`
	ErrorMessage          *string         `json:"error_message,omitempty"`
	RequestParamsTemplate json.RawMessage `json:"request_params_template"`
	ResponseSummary       string          `json:"response_summary,omitempty"`
	CallerID              string          `json:"caller_id,omitempty"`
}

// AuditFilter narrows a QueryAuditEntries call.
type AuditFilter struct {
	ToolCategory *string
	ToolName     *string
	Status       *string
	Text         *string // free-text search over tool names and error messages
	After        *time.Time
	Before       *time.Time
	Limit        int
	Offset       int
}

// MemoryNode is a content-addressed node in the memory graph.
type MemoryNode struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Content    string            `json:"content"`
	EntityType string            `json:"entity_type"`
	Tags       []string          `json:"tags"`
	Metadata   map[string]any    `json:"metadata"`
	Source     string            `json:"source,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// MemoryNodePatch carries the subset of fields to update; nil means "leave
// unchanged" except Tags (nil means unchanged, non-nil replaces wholesale)
// and Metadata (patch-merged, never replaced wholesale).
type MemoryNodePatch struct {
	Content  *string
	Name     *string
	Tags     []string
	Metadata map[string]any
}

const (
	EntityConcept = "concept"
	EntityFact    = "fact"
	EntityTask    = "task"
	EntityPerson  = "person"
	EntityEvent   = "event"
	EntityNote    = "note"
)

// MemoryEdge is a typed, weighted relation between two nodes. The triple
// (SourceID, TargetID, Relation) is unique; re-linking updates weight and
// metadata rather than inserting a duplicate.
type MemoryEdge struct {
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Relation   string         `json:"relation"`
	Weight     float64        `json:"weight"`
	Metadata   map[string]any `json:"metadata"`
	ValidFrom  *time.Time     `json:"valid_from,omitempty"`
	ValidUntil *time.Time     `json:"valid_until,omitempty"`
}

const RelationParentOf = "parent_of"

// Conventional relation names; any free string is accepted, and neither
// the tool catalog nor memory.stats() checks relations against this list.
const (
	RelationRelatedTo  = "related_to"
	RelationDependsOn  = "depends_on"
	RelationContradicts = "contradicts"
	RelationSupersedes = "supersedes"
	RelationDerivedFrom = "derived_from"
)

// SearchMode selects how memory.search ranks and filters results.
type SearchMode string

const (
	SearchFulltext SearchMode = "fulltext"
	SearchTags     SearchMode = "tags"
	SearchHybrid   SearchMode = "hybrid"
)

// MemoryStats summarizes the graph for diagnostics and the memory_stats tool.
type MemoryStats struct {
	CountByType    map[string]int `json:"count_by_type"`
	EdgeCount      int            `json:"edge_count"`
	TopConnected   []NodeDegree   `json:"top_connected"`
	OrphanCount    int            `json:"orphan_count"`
	TagFrequency   map[string]int `json:"tag_frequency"`
}

// NodeDegree is one entry of the most-connected-nodes ranking.
type NodeDegree struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Degree int    `json:"degree"`
}
