package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hostbridge/hostbridge/internal/store"
)

// auditHandler exposes query access over the append-only audit log.
type auditHandler struct {
	store store.AuditStore
}

type auditQueryResponse struct {
	Entries []store.AuditEntry `json:"entries"`
	Total   int                `json:"total"`
}

func (h *auditHandler) query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.AuditFilter{Limit: 100}

	if v := q.Get("category"); v != "" {
		f.ToolCategory = &v
	}
	if v := q.Get("name"); v != "" {
		f.ToolName = &v
	}
	if v := q.Get("status"); v != "" {
		f.Status = &v
	}
	if v := q.Get("text"); v != "" {
		f.Text = &v
	}
	if v := q.Get("after"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.After = &t
		}
	}
	if v := q.Get("before"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.Before = &t
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			f.Offset = n
		}
	}

	entries, total, err := h.store.QueryAuditEntries(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query audit log")
		return
	}
	writeJSON(w, http.StatusOK, auditQueryResponse{Entries: entries, Total: total})
}

// export writes audit entries, newest first and up to 1,000,000 of them,
// as newline-delimited JSON, bypassing the default query page size for
// bulk retrieval. Query-string filters are not applied, CSV is not
// offered, and the entries are loaded in full before the first is written.
func (h *auditHandler) export(w http.ResponseWriter, r *http.Request) {
	f := store.AuditFilter{Limit: 1_000_000}
	entries, _, err := h.store.QueryAuditEntries(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export audit log")
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return
		}
	}
}
