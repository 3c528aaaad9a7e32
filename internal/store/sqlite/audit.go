package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hostbridge/hostbridge/internal/store"
)

func (d *DB) InsertAuditEntry(ctx context.Context, e *store.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	params := normalizeJSON(e.RequestParamsTemplate, "{}")
	var errMsg any
	if e.ErrorMessage != nil {
		errMsg = *e.ErrorMessage
	}

	_, err := d.q.ExecContext(ctx, `
		INSERT INTO audit_entries
			(id, timestamp, protocol, tool_category, tool_name, status,
			 duration_ms, error_message, request_params_template, response_summary, caller_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, formatTime(e.Timestamp), e.Protocol, e.ToolCategory, e.ToolName, e.Status,
		e.DurationMs, errMsg, params, e.ResponseSummary, e.CallerID,
	)
	return err
}

func (d *DB) QueryAuditEntries(ctx context.Context, f store.AuditFilter) ([]store.AuditEntry, int, error) {
	where, args := buildAuditWhere(f)

	var total int
	if err := d.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_entries"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, timestamp, protocol, tool_category, tool_name, status,
			duration_ms, error_message, request_params_template, response_summary, caller_id
		FROM audit_entries` + where + ` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	dataArgs := append(append([]any{}, args...), limit, f.Offset)

	rows, err := d.q.QueryContext(ctx, query, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []store.AuditEntry
	for rows.Next() {
		e, err := scanAuditRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

func (d *DB) SweepAuditEntries(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	res, err := d.q.ExecContext(ctx, "DELETE FROM audit_entries WHERE timestamp < ?", formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func buildAuditWhere(f store.AuditFilter) (string, []any) {
	var conds []string
	var args []any
	if f.ToolCategory != nil {
		conds = append(conds, "tool_category = ?")
		args = append(args, *f.ToolCategory)
	}
	if f.ToolName != nil {
		conds = append(conds, "tool_name = ?")
		args = append(args, *f.ToolName)
	}
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *f.Status)
	}
	if f.Text != nil && *f.Text != "" {
		conds = append(conds, "(tool_name LIKE ? OR error_message LIKE ?)")
		like := "%" + *f.Text + "%"
		args = append(args, like, like)
	}
	if f.After != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, formatTime(*f.After))
	}
	if f.Before != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, formatTime(*f.Before))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanAuditRow(row rowScanner) (*store.AuditEntry, error) {
	var e store.AuditEntry
	var ts, params string
	var errMsg *string
	err := row.Scan(
		&e.ID, &ts, &e.Protocol, &e.ToolCategory, &e.ToolName, &e.Status,
		&e.DurationMs, &errMsg, &params, &e.ResponseSummary, &e.CallerID,
	)
	if err != nil {
		return nil, fmt.Errorf("scan audit row: %w", err)
	}
	e.ErrorMessage = errMsg
	e.RequestParamsTemplate = json.RawMessage(params)
	e.Timestamp = parseTime(ts)
	return &e, nil
}
