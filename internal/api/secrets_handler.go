package api

import "net/http"

// secretsStore is the narrow view the admin endpoints need; values are
// never exposed over this interface, only key lists and reload.
type secretsStore interface {
	Keys() []string
	Reload() error
}

// secretsHandler exposes key listing and hot-reload for the Secrets Store.
// Values are never returned by any route here.
type secretsHandler struct {
	store secretsStore
}

func (h *secretsHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"keys": h.store.Keys()})
}

func (h *secretsHandler) reload(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload secrets file")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"keys": h.store.Keys()})
}
