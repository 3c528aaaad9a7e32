package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hostbridge/hostbridge/internal/store"
)

func (d *DB) UpsertNode(ctx context.Context, n *store.MemoryNode) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	tags, err := json.Marshal(n.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	meta, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = d.q.ExecContext(ctx, `
		INSERT INTO memory_nodes (id, name, content, entity_type, tags, metadata, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, content = excluded.content, entity_type = excluded.entity_type,
			tags = excluded.tags, metadata = excluded.metadata, source = excluded.source,
			updated_at = excluded.updated_at`,
		n.ID, n.Name, n.Content, n.EntityType, string(tags), string(meta), n.Source,
		formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
	)
	return err
}

func (d *DB) GetNode(ctx context.Context, id string) (*store.MemoryNode, error) {
	row := d.q.QueryRowContext(ctx, `
		SELECT id, name, content, entity_type, tags, metadata, source, created_at, updated_at
		FROM memory_nodes WHERE id = ?`, id)
	return scanMemoryNode(row)
}

func (d *DB) UpdateNode(ctx context.Context, id string, patch store.MemoryNodePatch) (*store.MemoryNode, error) {
	n, err := d.GetNode(ctx, id)
	if err != nil {
		return nil, err
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
			n.Metadata = make(map[string]any, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			n.Metadata[k] = v
		}
	}
	if err := d.UpsertNode(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (d *DB) DeleteNode(ctx context.Context, id string) error {
	res, err := d.q.ExecContext(ctx, "DELETE FROM memory_nodes WHERE id = ?", id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (d *DB) SearchNodes(
	ctx context.Context, mode store.SearchMode, query, entityType string,
	tags []string, after, before *string, maxResults int,
) ([]store.MemoryNode, error) {
	if maxResults <= 0 {
		maxResults = 20
	}

	var ids []string
	var err error

	switch mode {
	case store.SearchTags:
		ids, err = d.searchByTags(ctx, tags, maxResults)
	case store.SearchFulltext:
		ids, err = d.searchFulltext(ctx, query, maxResults)
	default: // hybrid
		ftsIDs, e1 := d.searchFulltext(ctx, query, maxResults)
		if e1 != nil {
			return nil, e1
		}
		if len(tags) > 0 {
			tagIDs, e2 := d.searchByTags(ctx, tags, maxResults)
			if e2 != nil {
				return nil, e2
			}
			ids = intersectPreserveOrder(ftsIDs, tagIDs)
		} else {
			ids = ftsIDs
		}
	}
	if err != nil {
		return nil, err
	}

	var out []store.MemoryNode
	for _, id := range ids {
		n, err := d.GetNode(ctx, id)
		if err != nil {
			continue
		}
		if entityType != "" && n.EntityType != entityType {
			continue
		}
		if after != nil && n.CreatedAt.Before(parseTime(*after)) {
			continue
		}
		if before != nil && n.CreatedAt.After(parseTime(*before)) {
			continue
		}
		out = append(out, *n)
		if len(out) >= maxResults {
			break
		}
	}
	return out, nil
}

func (d *DB) searchFulltext(ctx context.Context, query string, limit int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		rows, err := d.q.QueryContext(ctx, "SELECT id FROM memory_nodes ORDER BY updated_at DESC LIMIT ?", limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanIDs(rows)
	}
	rows, err := d.q.QueryContext(ctx, `
		SELECT id FROM memory_nodes_fts WHERE memory_nodes_fts MATCH ?
		ORDER BY bm25(memory_nodes_fts) LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (d *DB) searchByTags(ctx context.Context, tags []string, limit int) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	rows, err := d.q.QueryContext(ctx, "SELECT id, tags FROM memory_nodes LIMIT -1")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id, rawTags string
		if err := rows.Scan(&id, &rawTags); err != nil {
			return nil, err
		}
		var nodeTags []string
		if err := json.Unmarshal([]byte(rawTags), &nodeTags); err != nil {
			continue
		}
		if hasAllTags(nodeTags, tags) {
			out = append(out, id)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, rows.Err()
}

func hasAllTags(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

func intersectPreserveOrder(a, b []string) []string {
	bset := make(map[string]struct{}, len(b))
	for _, id := range b {
		bset[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := bset[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (d *DB) UpsertEdge(ctx context.Context, e *store.MemoryEdge) error {
	if e.Weight == 0 {
		e.Weight = 1.0
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = d.q.ExecContext(ctx, `
		INSERT INTO memory_edges (source_id, target_id, relation, weight, metadata, valid_from, valid_until)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, relation) DO UPDATE SET
			weight = excluded.weight, metadata = excluded.metadata,
			valid_from = excluded.valid_from, valid_until = excluded.valid_until`,
		e.SourceID, e.TargetID, e.Relation, e.Weight, string(meta),
		formatTimePtr(e.ValidFrom), formatTimePtr(e.ValidUntil),
	)
	return err
}

func (d *DB) EdgesFrom(ctx context.Context, id string) ([]store.MemoryEdge, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT source_id, target_id, relation, weight, metadata, valid_from, valid_until
		FROM memory_edges WHERE source_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

func (d *DB) EdgesTo(ctx context.Context, id string) ([]store.MemoryEdge, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT source_id, target_id, relation, weight, metadata, valid_from, valid_until
		FROM memory_edges WHERE target_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

// EdgesByRelation returns forward-only edges: those where id is the
// source. Callers that need both directions (e.g. Related) union this
// with EdgesTo themselves rather than relying on this query to do it.
func (d *DB) EdgesByRelation(ctx context.Context, id, relation string) ([]store.MemoryEdge, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT source_id, target_id, relation, weight, metadata, valid_from, valid_until
		FROM memory_edges WHERE source_id = ? AND relation = ?`, id, relation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

func (d *DB) DeleteEdgesIncident(ctx context.Context, id string) error {
	_, err := d.q.ExecContext(ctx, "DELETE FROM memory_edges WHERE source_id = ? OR target_id = ?", id, id)
	return err
}

func (d *DB) Stats(ctx context.Context) (*store.MemoryStats, error) {
	s := &store.MemoryStats{
		CountByType:  make(map[string]int),
		TagFrequency: make(map[string]int),
	}

	rows, err := d.q.QueryContext(ctx, "SELECT entity_type, COUNT(*) FROM memory_nodes GROUP BY entity_type")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var t string
		var c int
		if err := rows.Scan(&t, &c); err != nil {
			rows.Close()
			return nil, err
		}
		s.CountByType[t] = c
	}
	rows.Close()

	if err := d.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM memory_edges").Scan(&s.EdgeCount); err != nil {
		return nil, err
	}

	degRows, err := d.q.QueryContext(ctx, `
		SELECT n.id, n.name, (
			(SELECT COUNT(*) FROM memory_edges WHERE source_id = n.id) +
			(SELECT COUNT(*) FROM memory_edges WHERE target_id = n.id)
		) AS degree
		FROM memory_nodes n ORDER BY degree DESC LIMIT 10`)
	if err != nil {
		return nil, err
	}
	for degRows.Next() {
		var nd store.NodeDegree
		if err := degRows.Scan(&nd.ID, &nd.Name, &nd.Degree); err != nil {
			degRows.Close()
			return nil, err
		}
		s.TopConnected = append(s.TopConnected, nd)
	}
	degRows.Close()

	if err := d.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memory_nodes n WHERE NOT EXISTS (
			SELECT 1 FROM memory_edges WHERE source_id = n.id OR target_id = n.id
		)`).Scan(&s.OrphanCount); err != nil {
		return nil, err
	}

	tagRows, err := d.q.QueryContext(ctx, "SELECT tags FROM memory_nodes")
	if err != nil {
		return nil, err
	}
	for tagRows.Next() {
		var raw string
		if err := tagRows.Scan(&raw); err != nil {
			tagRows.Close()
			return nil, err
		}
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err == nil {
			for _, t := range tags {
				s.TagFrequency[t]++
			}
		}
	}
	tagRows.Close()

	return s, nil
}

func (d *DB) AllNodeIDs(ctx context.Context) ([]string, error) {
	rows, err := d.q.QueryContext(ctx, "SELECT id FROM memory_nodes")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanMemoryNode(row rowScanner) (*store.MemoryNode, error) {
	var n store.MemoryNode
	var tags, meta, createdAt, updatedAt string
	err := row.Scan(&n.ID, &n.Name, &n.Content, &n.EntityType, &tags, &meta, &n.Source, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan memory node: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
		n.Tags = nil
	}
	if err := json.Unmarshal([]byte(meta), &n.Metadata); err != nil {
		n.Metadata = nil
	}
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	return &n, nil
}

func scanEdges(rows *sql.Rows) ([]store.MemoryEdge, error) {
	var out []store.MemoryEdge
	for rows.Next() {
		var e store.MemoryEdge
		var meta string
		var validFrom, validUntil *string
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Relation, &e.Weight, &meta, &validFrom, &validUntil); err != nil {
			return nil, fmt.Errorf("scan memory edge: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			e.Metadata = nil
		}
		e.ValidFrom = parseTimePtr(validFrom)
		e.ValidUntil = parseTimePtr(validUntil)
		out = append(out, e)
	}
	return out, rows.Err()
}
