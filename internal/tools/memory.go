package tools

import (
	"context"
	"time"

	"github.com/hostbridge/hostbridge/internal/errs"
	"github.com/hostbridge/hostbridge/internal/memory"
	"github.com/hostbridge/hostbridge/internal/store"
)

// Memory exposes the Memory Graph's operations as dispatchable tools.
type Memory struct {
	graph *memory.Graph
}

// NewMemory creates a Memory handler set over graph.
func NewMemory(graph *memory.Graph) *Memory {
	return &Memory{graph: graph}
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Store creates or upserts a memory node.
func (m *Memory) Store(ctx context.Context, params map[string]any) (any, error) {
	content, err := stringParam(params, "content")
	if err != nil {
		return nil, err
	}
	n := &store.MemoryNode{
		ID:         asString(params["id"]),
		Name:       asString(params["name"]),
		Content:    content,
		EntityType: asString(params["entity_type"]),
		Tags:       stringSlice(params["tags"]),
		Metadata:   asMap(params["metadata"]),
		Source:     asString(params["source"]),
	}
	saved, err := m.graph.Store(ctx, n, nil)
	if err != nil {
		return nil, errs.Newf(errs.KindInternal, "store memory node: %v", err)
	}
	return saved, nil
}

// Get returns a node, optionally with its immediate relations.
func (m *Memory) Get(ctx context.Context, params map[string]any) (any, error) {
	id, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	result, err := m.graph.Get(ctx, id, boolParam(params, "include_relations", false))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Search dispatches to the graph's mode-aware search.
func (m *Memory) Search(ctx context.Context, params map[string]any) (any, error) {
	mode := store.SearchMode(asString(params["mode"]))
	query := asString(params["query"])
	entityType := asString(params["entity_type"])
	tags := stringSlice(params["tags"])
	maxResults := 20
	if v, ok := params["max_results"].(float64); ok && v > 0 {
		maxResults = int(v)
	}
	var after, before *string
	if v := asString(params["after"]); v != "" {
		after = &v
	}
	if v := asString(params["before"]); v != "" {
		before = &v
	}
	nodes, err := m.graph.Search(ctx, mode, query, entityType, tags, after, before, maxResults)
	if err != nil {
		return nil, errs.Newf(errs.KindInternal, "search memory: %v", err)
	}
	return map[string]any{"nodes": nodes}, nil
}

// Update applies a patch to an existing node.
func (m *Memory) Update(ctx context.Context, params map[string]any) (any, error) {
	id, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	patch := store.MemoryNodePatch{Metadata: asMap(params["metadata"])}
	if v, ok := params["content"].(string); ok {
		patch.Content = &v
	}
	if v, ok := params["name"].(string); ok {
		patch.Name = &v
	}
	if _, ok := params["tags"]; ok {
		patch.Tags = stringSlice(params["tags"])
		if patch.Tags == nil {
			patch.Tags = []string{}
		}
	}
	n, err := m.graph.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Delete removes a node, honoring the cascade flag for would-be orphans.
func (m *Memory) Delete(ctx context.Context, params map[string]any) (any, error) {
	id, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	orphans, err := m.graph.Delete(ctx, id, boolParam(params, "cascade", false))
	if err != nil {
		if ce, ok := err.(*errs.Error); ok && len(orphans) > 0 {
			return nil, errs.Newf(ce.Kind, "%s: would orphan %v", ce.Message, orphans)
		}
		return nil, err
	}
	return map[string]any{"deleted": true}, nil
}

// Link idempotently upserts an edge between two nodes.
func (m *Memory) Link(ctx context.Context, params map[string]any) (any, error) {
	src, err := stringParam(params, "source_id")
	if err != nil {
		return nil, err
	}
	dst, err := stringParam(params, "target_id")
	if err != nil {
		return nil, err
	}
	relation, err := stringParam(params, "relation")
	if err != nil {
		return nil, err
	}
	weight := 1.0
	if v, ok := params["weight"].(float64); ok {
		weight = v
	}
	var validFrom, validUntil *time.Time
	if v, ok := params["valid_from"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			validFrom = &t
		}
	}
	if v, ok := params["valid_until"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			validUntil = &t
		}
	}
	if err := m.graph.Link(ctx, src, dst, relation, weight, boolParam(params, "bidirectional", false), asMap(params["metadata"]), validFrom, validUntil); err != nil {
		return nil, errs.Newf(errs.KindInternal, "link memory nodes: %v", err)
	}
	return map[string]any{"linked": true}, nil
}

// Ancestors walks parent_of edges backward from id.
func (m *Memory) Ancestors(ctx context.Context, params map[string]any) (any, error) {
	id, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	depth := 0
	if v, ok := params["max_depth"].(float64); ok {
		depth = int(v)
	}
	nodes, err := m.graph.Ancestors(ctx, id, depth)
	if err != nil {
		return nil, errs.Newf(errs.KindInternal, "ancestors: %v", err)
	}
	return map[string]any{"nodes": nodes}, nil
}

// Subtree walks parent_of edges forward from id.
func (m *Memory) Subtree(ctx context.Context, params map[string]any) (any, error) {
	id, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	depth := 0
	if v, ok := params["max_depth"].(float64); ok {
		depth = int(v)
	}
	nodes, err := m.graph.Subtree(ctx, id, depth)
	if err != nil {
		return nil, errs.Newf(errs.KindInternal, "subtree: %v", err)
	}
	return map[string]any{"nodes": nodes}, nil
}

// Related returns the union of a node's incident edges, optionally
// filtered to a single relation.
func (m *Memory) Related(ctx context.Context, params map[string]any) (any, error) {
	id, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	edges, err := m.graph.Related(ctx, id, asString(params["relation"]))
	if err != nil {
		return nil, errs.Newf(errs.KindInternal, "related: %v", err)
	}
	return map[string]any{"edges": edges}, nil
}

// Stats returns aggregate graph statistics.
func (m *Memory) Stats(ctx context.Context, _ map[string]any) (any, error) {
	stats, err := m.graph.Stats(ctx)
	if err != nil {
		return nil, errs.Newf(errs.KindInternal, "memory stats: %v", err)
	}
	return stats, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
