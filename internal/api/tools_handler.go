package api

import (
	"net/http"

	"github.com/hostbridge/hostbridge/internal/dispatch"
)

// toolsHandler serves POST /api/tools/{category}/{name}, the REST face of
// the Dispatch Engine.
type toolsHandler struct {
	dispatch *dispatch.Engine
}

func (h *toolsHandler) call(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	name := r.PathValue("name")

	var params map[string]any
	if hasRequestBody(r) {
		if err := decodeJSON(r, &params); err != nil {
			writeError(w, http.StatusBadRequest, "malformed JSON body")
			return
		}
	}

	result, err := h.dispatch.Dispatch(r.Context(), dispatch.Invocation{
		Category: category,
		Name:     name,
		Params:   params,
		Protocol: "rest",
	})
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
