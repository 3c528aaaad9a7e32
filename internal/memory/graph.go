// Package memory implements the Memory Graph's application-level
// operations — store/get/search/update/delete/link plus hierarchy
// traversal — atop the durable store.MemoryStore persistence interface.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostbridge/hostbridge/internal/errs"
	"github.com/hostbridge/hostbridge/internal/store"
)

// DefaultMaxDepth bounds ancestors/subtree traversal when the caller does
// not specify one.
const DefaultMaxDepth = 10

// Graph wraps a durable MemoryStore with the traversal and cascade-delete
// semantics tool handlers expect.
type Graph struct {
	store store.MemoryStore
}

// New creates a Graph over s.
func New(s store.MemoryStore) *Graph {
	return &Graph{store: s}
}

// NodeWithRelations is the result of Get when include_relations is set.
type NodeWithRelations struct {
	Node     store.MemoryNode
	Outgoing []store.MemoryEdge
	Incoming []store.MemoryEdge
}

// Store assigns an id and timestamps (if absent), upserts node, and
// optionally creates the initial edges supplied alongside it.
func (g *Graph) Store(ctx context.Context, n *store.MemoryNode, initialEdges []store.MemoryEdge) (*store.MemoryNode, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Name == "" {
		n.Name = defaultName(n.Content)
	}
	if n.EntityType == "" {
		n.EntityType = store.EntityNote
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	if err := g.store.UpsertNode(ctx, n); err != nil {
		return nil, fmt.Errorf("store node: %w", err)
	}
	for i := range initialEdges {
		e := initialEdges[i]
		if e.SourceID == "" {
			e.SourceID = n.ID
		}
		if err := g.store.UpsertEdge(ctx, &e); err != nil {
			return nil, fmt.Errorf("store initial edge: %w", err)
		}
	}
	return n, nil
}

func defaultName(content string) string {
	const max = 60
	if len(content) <= max {
		return content
	}
	return content[:max]
}

// Get returns the node and, if includeRelations, its immediate neighbors.
// depth is currently only meaningful for ancestors/subtree; Get always
// returns immediate (depth-1) neighbors when relations are requested.
func (g *Graph) Get(ctx context.Context, id string, includeRelations bool) (*NodeWithRelations, error) {
	n, err := g.store.GetNode(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, errs.Newf(errs.KindNotFound, "memory node %q not found", id)
		}
		return nil, err
	}
	result := &NodeWithRelations{Node: *n}
	if includeRelations {
		out, err := g.store.EdgesFrom(ctx, id)
		if err != nil {
			return nil, err
		}
		in, err := g.store.EdgesTo(ctx, id)
		if err != nil {
			return nil, err
		}
		result.Outgoing = out
		result.Incoming = in
	}
	return result, nil
}

// Search dispatches to the store's mode-aware search. An empty mode
// defaults to hybrid, per the component contract.
func (g *Graph) Search(ctx context.Context, mode store.SearchMode, query, entityType string, tags []string, after, before *string, maxResults int) ([]store.MemoryNode, error) {
	if mode == "" {
		mode = store.SearchHybrid
	}
	return g.store.SearchNodes(ctx, mode, query, entityType, tags, after, before, maxResults)
}

// Update applies patch to node id and returns the updated node.
func (g *Graph) Update(ctx context.Context, id string, patch store.MemoryNodePatch) (*store.MemoryNode, error) {
	n, err := g.store.UpdateNode(ctx, id, patch)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, errs.Newf(errs.KindNotFound, "memory node %q not found", id)
		}
		return nil, err
	}
	return n, nil
}

// Delete removes node id. With cascade=false it first checks whether any
// child (via parent_of) would be orphaned — i.e. id is its only parent —
// and refuses, returning the would-be-orphan ids, if so. With cascade=true
// it deletes orphaned children transitively before deleting id itself.
func (g *Graph) Delete(ctx context.Context, id string, cascade bool) ([]string, error) {
	orphans, err := g.wouldOrphan(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(orphans) > 0 && !cascade {
		return orphans, errs.New(errs.KindInvalidParam, "delete would orphan children; pass cascade=true to delete them")
	}
	for _, childID := range orphans {
		if _, err := g.Delete(ctx, childID, true); err != nil {
			return nil, err
		}
	}
	if err := g.store.DeleteEdgesIncident(ctx, id); err != nil {
		return nil, err
	}
	if err := g.store.DeleteNode(ctx, id); err != nil {
		if err == store.ErrNotFound {
			return nil, errs.Newf(errs.KindNotFound, "memory node %q not found", id)
		}
		return nil, err
	}
	return nil, nil
}

// wouldOrphan returns the children of id (via parent_of) whose only
// incoming parent_of edge is from id.
func (g *Graph) wouldOrphan(ctx context.Context, id string) ([]string, error) {
	children, err := g.store.EdgesByRelation(ctx, id, store.RelationParentOf)
	if err != nil {
		return nil, err
	}
	var orphans []string
	for _, e := range children {
		parents, err := g.store.EdgesTo(ctx, e.TargetID)
		if err != nil {
			return nil, err
		}
		parentCount := 0
		for _, p := range parents {
			if p.Relation == store.RelationParentOf {
				parentCount++
			}
		}
		if parentCount <= 1 {
			orphans = append(orphans, e.TargetID)
		}
	}
	return orphans, nil
}

// Link idempotently upserts the (src, dst, relation) edge. If bidirectional,
// it also upserts the reverse edge with the same relation name.
func (g *Graph) Link(ctx context.Context, src, dst, relation string, weight float64, bidirectional bool, metadata map[string]any, validFrom, validUntil *time.Time) error {
	if weight == 0 {
		weight = 1.0
	}
	e := &store.MemoryEdge{SourceID: src, TargetID: dst, Relation: relation, Weight: weight, Metadata: metadata, ValidFrom: validFrom, ValidUntil: validUntil}
	if err := g.store.UpsertEdge(ctx, e); err != nil {
		return err
	}
	if bidirectional {
		rev := &store.MemoryEdge{SourceID: dst, TargetID: src, Relation: relation, Weight: weight, Metadata: metadata, ValidFrom: validFrom, ValidUntil: validUntil}
		if err := g.store.UpsertEdge(ctx, rev); err != nil {
			return err
		}
	}
	return nil
}

// Children returns the parent_of edges where id is the source.
func (g *Graph) Children(ctx context.Context, id string) ([]store.MemoryEdge, error) {
	return g.store.EdgesByRelation(ctx, id, store.RelationParentOf)
}

// Ancestors walks parent_of edges backward from id (reverse direction: id's
// parents, their parents, ...), iteratively (not recursively) to bound
// stack depth, up to maxDepth levels.
func (g *Graph) Ancestors(ctx context.Context, id string, maxDepth int) ([]store.MemoryNode, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	visited := map[string]bool{id: true}
	frontier := []string{id}
	var out []store.MemoryNode

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, cur := range frontier {
			incoming, err := g.store.EdgesTo(ctx, cur)
			if err != nil {
				return nil, err
			}
			for _, e := range incoming {
				if e.Relation != store.RelationParentOf || visited[e.SourceID] {
					continue
				}
				visited[e.SourceID] = true
				n, err := g.store.GetNode(ctx, e.SourceID)
				if err != nil {
					continue
				}
				out = append(out, *n)
				next = append(next, e.SourceID)
			}
		}
		frontier = next
	}
	return out, nil
}

// Subtree walks parent_of edges forward from id (id's children, their
// children, ...), iteratively, up to maxDepth levels. It does not include
// id itself.
func (g *Graph) Subtree(ctx context.Context, id string, maxDepth int) ([]store.MemoryNode, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	visited := map[string]bool{id: true}
	frontier := []string{id}
	var out []store.MemoryNode

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, cur := range frontier {
			children, err := g.store.EdgesByRelation(ctx, cur, store.RelationParentOf)
			if err != nil {
				return nil, err
			}
			for _, e := range children {
				if visited[e.TargetID] {
					continue
				}
				visited[e.TargetID] = true
				n, err := g.store.GetNode(ctx, e.TargetID)
				if err != nil {
					continue
				}
				out = append(out, *n)
				next = append(next, e.TargetID)
			}
		}
		frontier = next
	}
	return out, nil
}

// Roots returns every node id with no incoming parent_of edge.
func (g *Graph) Roots(ctx context.Context) ([]store.MemoryNode, error) {
	ids, err := g.store.AllNodeIDs(ctx)
	if err != nil {
		return nil, err
	}
	var out []store.MemoryNode
	for _, id := range ids {
		incoming, err := g.store.EdgesTo(ctx, id)
		if err != nil {
			return nil, err
		}
		hasParent := false
		for _, e := range incoming {
			if e.Relation == store.RelationParentOf {
				hasParent = true
				break
			}
		}
		if hasParent {
			continue
		}
		n, err := g.store.GetNode(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

// Related returns the union of outgoing and incoming edges for id,
// optionally filtered to a single relation.
func (g *Graph) Related(ctx context.Context, id, relation string) ([]store.MemoryEdge, error) {
	var out []store.MemoryEdge
	if relation != "" {
		from, err := g.store.EdgesByRelation(ctx, id, relation)
		if err != nil {
			return nil, err
		}
		out = append(out, from...)
		to, err := g.store.EdgesTo(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, e := range to {
			if e.Relation == relation {
				out = append(out, e)
			}
		}
		return out, nil
	}

	from, err := g.store.EdgesFrom(ctx, id)
	if err != nil {
		return nil, err
	}
	to, err := g.store.EdgesTo(ctx, id)
	if err != nil {
		return nil, err
	}
	out = append(out, from...)
	out = append(out, to...)
	return out, nil
}

// Stats delegates to the store's aggregate query.
func (g *Graph) Stats(ctx context.Context) (*store.MemoryStats, error) {
	return g.store.Stats(ctx)
}
