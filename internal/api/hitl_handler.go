package api

import (
	"net/http"

	"github.com/hostbridge/hostbridge/internal/hitl"
)

// hitlHandler exposes the admin-facing view of the HITL Manager: the
// pending-request queue and the approve/reject decision endpoint.
type hitlHandler struct {
	manager *hitl.Manager
}

func (h *hitlHandler) listPending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.ListPending())
}

func (h *hitlHandler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	req, ok := h.manager.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown hitl request")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type decideRequest struct {
	Approve  bool   `json:"approve"`
	Reviewer string `json:"reviewer"`
	Note     string `json:"note"`
}

func (h *hitlHandler) decide(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body decideRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if err := h.manager.Decide(id, body.Approve, body.Reviewer, body.Note); err != nil {
		writeError(w, http.StatusNotFound, "request not found or already decided")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
