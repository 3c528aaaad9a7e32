package memory

import (
	"context"
	"testing"

	"github.com/hostbridge/hostbridge/internal/store"
)

// fakeStore is a minimal in-memory MemoryStore used to exercise the graph's
// traversal and cascade-delete logic without sqlite.
type fakeStore struct {
	nodes map[string]*store.MemoryNode
	edges []store.MemoryEdge
}

func newFakeStore() *fakeStore {
	return &fakeStore{nodes: make(map[string]*store.MemoryNode)}
}

func (f *fakeStore) UpsertNode(ctx context.Context, n *store.MemoryNode) error {
	cp := *n
	f.nodes[n.ID] = &cp
	return nil
}

func (f *fakeStore) GetNode(ctx context.Context, id string) (*store.MemoryNode, error) {
	n, ok := f.nodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeStore) UpdateNode(ctx context.Context, id string, patch store.MemoryNodePatch) (*store.MemoryNode, error) {
	n, ok := f.nodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if patch.Content != nil {
		n.Content = *patch.Content
	}
	if patch.Name != nil {
		n.Name = *patch.Name
	}
	if patch.Tags != nil {
		n.Tags = patch.Tags
	}
	if patch.Metadata != nil {
		if n.Metadata == nil {
			n.Metadata = map[string]any{}
		}
		for k, v := range patch.Metadata {
			n.Metadata[k] = v
		}
	}
	cp := *n
	return &cp, nil
}

func (f *fakeStore) DeleteNode(ctx context.Context, id string) error {
	if _, ok := f.nodes[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.nodes, id)
	return nil
}

func (f *fakeStore) SearchNodes(ctx context.Context, mode store.SearchMode, query, entityType string, tags []string, after, before *string, maxResults int) ([]store.MemoryNode, error) {
	return nil, nil
}

func (f *fakeStore) UpsertEdge(ctx context.Context, e *store.MemoryEdge) error {
	for i, existing := range f.edges {
		if existing.SourceID == e.SourceID && existing.TargetID == e.TargetID && existing.Relation == e.Relation {
			f.edges[i] = *e
			return nil
		}
	}
	f.edges = append(f.edges, *e)
	return nil
}

func (f *fakeStore) EdgesFrom(ctx context.Context, id string) ([]store.MemoryEdge, error) {
	var out []store.MemoryEdge
	for _, e := range f.edges {
		if e.SourceID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) EdgesTo(ctx context.Context, id string) ([]store.MemoryEdge, error) {
	var out []store.MemoryEdge
	for _, e := range f.edges {
		if e.TargetID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) EdgesByRelation(ctx context.Context, id, relation string) ([]store.MemoryEdge, error) {
	var out []store.MemoryEdge
	for _, e := range f.edges {
		if e.SourceID == id && e.Relation == relation {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteEdgesIncident(ctx context.Context, id string) error {
	var kept []store.MemoryEdge
	for _, e := range f.edges {
		if e.SourceID != id && e.TargetID != id {
			kept = append(kept, e)
		}
	}
	f.edges = kept
	return nil
}

func (f *fakeStore) Stats(ctx context.Context) (*store.MemoryStats, error) {
	return &store.MemoryStats{}, nil
}

func (f *fakeStore) AllNodeIDs(ctx context.Context) ([]string, error) {
	var out []string
	for id := range f.nodes {
		out = append(out, id)
	}
	return out, nil
}

func TestStore_AssignsIDAndDefaultName(t *testing.T) {
	g := New(newFakeStore())
	n, err := g.Store(context.Background(), &store.MemoryNode{Content: "hello world"}, nil)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if n.ID == "" {
		t.Error("expected an assigned id")
	}
	if n.Name != "hello world" {
		t.Errorf("Name = %q", n.Name)
	}
	if n.EntityType != store.EntityNote {
		t.Errorf("EntityType = %q", n.EntityType)
	}
}

func TestLink_IdempotentUpsert(t *testing.T) {
	fs := newFakeStore()
	g := New(fs)
	if err := g.Link(context.Background(), "a", "b", "related_to", 1.0, false, nil, nil, nil); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := g.Link(context.Background(), "a", "b", "related_to", 2.5, false, nil, nil, nil); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if len(fs.edges) != 1 {
		t.Fatalf("expected exactly one edge after re-linking, got %d", len(fs.edges))
	}
	if fs.edges[0].Weight != 2.5 {
		t.Errorf("expected weight to update to 2.5, got %v", fs.edges[0].Weight)
	}
}

func TestLink_Bidirectional(t *testing.T) {
	fs := newFakeStore()
	g := New(fs)
	if err := g.Link(context.Background(), "a", "b", "related_to", 1.0, true, nil, nil, nil); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if len(fs.edges) != 2 {
		t.Fatalf("expected two edges for bidirectional link, got %d", len(fs.edges))
	}
}

func TestDelete_RefusesWhenCascadeFalseAndWouldOrphan(t *testing.T) {
	fs := newFakeStore()
	g := New(fs)
	fs.nodes["parent"] = &store.MemoryNode{ID: "parent"}
	fs.nodes["child"] = &store.MemoryNode{ID: "child"}
	_ = g.Link(context.Background(), "parent", "child", store.RelationParentOf, 1, false, nil, nil, nil)

	orphans, err := g.Delete(context.Background(), "parent", false)
	if err == nil {
		t.Fatal("expected delete to be refused")
	}
	if len(orphans) != 1 || orphans[0] != "child" {
		t.Errorf("orphans = %v", orphans)
	}
	if _, ok := fs.nodes["parent"]; !ok {
		t.Error("parent should not have been deleted")
	}
}

func TestDelete_CascadeRemovesOrphanedChildren(t *testing.T) {
	fs := newFakeStore()
	g := New(fs)
	fs.nodes["parent"] = &store.MemoryNode{ID: "parent"}
	fs.nodes["child"] = &store.MemoryNode{ID: "child"}
	_ = g.Link(context.Background(), "parent", "child", store.RelationParentOf, 1, false, nil, nil, nil)

	_, err := g.Delete(context.Background(), "parent", true)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := fs.nodes["parent"]; ok {
		t.Error("parent should have been deleted")
	}
	if _, ok := fs.nodes["child"]; ok {
		t.Error("child should have cascaded away")
	}
}

func TestAncestorsAndSubtree(t *testing.T) {
	fs := newFakeStore()
	g := New(fs)
	fs.nodes["root"] = &store.MemoryNode{ID: "root"}
	fs.nodes["mid"] = &store.MemoryNode{ID: "mid"}
	fs.nodes["leaf"] = &store.MemoryNode{ID: "leaf"}
	_ = g.Link(context.Background(), "root", "mid", store.RelationParentOf, 1, false, nil, nil, nil)
	_ = g.Link(context.Background(), "mid", "leaf", store.RelationParentOf, 1, false, nil, nil, nil)

	subtree, err := g.Subtree(context.Background(), "root", 0)
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	if len(subtree) != 2 {
		t.Fatalf("expected 2 descendants, got %d", len(subtree))
	}

	ancestors, err := g.Ancestors(context.Background(), "leaf", 0)
	if err != nil {
		t.Fatalf("Ancestors: %v", err)
	}
	if len(ancestors) != 2 {
		t.Fatalf("expected 2 ancestors, got %d", len(ancestors))
	}
}

func TestRoots_ReturnsNodesWithNoParent(t *testing.T) {
	fs := newFakeStore()
	g := New(fs)
	fs.nodes["root"] = &store.MemoryNode{ID: "root"}
	fs.nodes["child"] = &store.MemoryNode{ID: "child"}
	_ = g.Link(context.Background(), "root", "child", store.RelationParentOf, 1, false, nil, nil, nil)

	roots, err := g.Roots(context.Background())
	if err != nil {
		t.Fatalf("Roots: %v", err)
	}
	if len(roots) != 1 || roots[0].ID != "root" {
		t.Errorf("roots = %v", roots)
	}
}
