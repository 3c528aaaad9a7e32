package sqlite

import (
	"context"
	"testing"

	"github.com/hostbridge/hostbridge/internal/store"
)

func TestEdgesByRelation_ForwardOnly(t *testing.T) {
	ctx := context.Background()
	db, err := New(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	// Three-level chain: G -(parent_of)-> P -(parent_of)-> C.
	for _, id := range []string{"G", "P", "C"} {
		if err := db.UpsertNode(ctx, &store.MemoryNode{ID: id, Content: id}); err != nil {
			t.Fatalf("upsert node %s: %v", id, err)
		}
	}
	if err := db.UpsertEdge(ctx, &store.MemoryEdge{SourceID: "G", TargetID: "P", Relation: store.RelationParentOf, Weight: 1}); err != nil {
		t.Fatalf("upsert edge G->P: %v", err)
	}
	if err := db.UpsertEdge(ctx, &store.MemoryEdge{SourceID: "P", TargetID: "C", Relation: store.RelationParentOf, Weight: 1}); err != nil {
		t.Fatalf("upsert edge P->C: %v", err)
	}

	edges, err := db.EdgesByRelation(ctx, "P", store.RelationParentOf)
	if err != nil {
		t.Fatalf("EdgesByRelation: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("EdgesByRelation(P) = %d edges, want 1 (forward-only, P->C); got %+v", len(edges), edges)
	}
	if edges[0].SourceID != "P" || edges[0].TargetID != "C" {
		t.Fatalf("EdgesByRelation(P) = %+v, want P->C only", edges[0])
	}
}

func TestEdgesByRelation_DoesNotTreatIncomingEdgeAsChild(t *testing.T) {
	ctx := context.Background()
	db, err := New(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, id := range []string{"G", "P", "C"} {
		if err := db.UpsertNode(ctx, &store.MemoryNode{ID: id, Content: id}); err != nil {
			t.Fatalf("upsert node %s: %v", id, err)
		}
	}
	if err := db.UpsertEdge(ctx, &store.MemoryEdge{SourceID: "G", TargetID: "P", Relation: store.RelationParentOf, Weight: 1}); err != nil {
		t.Fatalf("upsert edge G->P: %v", err)
	}
	if err := db.UpsertEdge(ctx, &store.MemoryEdge{SourceID: "P", TargetID: "C", Relation: store.RelationParentOf, Weight: 1}); err != nil {
		t.Fatalf("upsert edge P->C: %v", err)
	}

	// P must never appear as its own child via the G->P edge.
	edges, err := db.EdgesByRelation(ctx, "P", store.RelationParentOf)
	if err != nil {
		t.Fatalf("EdgesByRelation: %v", err)
	}
	for _, e := range edges {
		if e.TargetID == "P" {
			t.Fatalf("EdgesByRelation(P) incorrectly returned P as its own child: %+v", e)
		}
	}
}
