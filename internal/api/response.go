package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hostbridge/hostbridge/internal/errs"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeErrorDetail writes a JSON error response with extra details.
func writeErrorDetail(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: detail})
}

// dispatchErrorEnvelope is the error body returned by every tool endpoint,
// per the REST surface contract: {error, error_type, message, suggestion_tool?}.
type dispatchErrorEnvelope struct {
	Error          bool   `json:"error"`
	ErrorType      string `json:"error_type"`
	Message        string `json:"message"`
	SuggestionTool string `json:"suggestion_tool,omitempty"`
}

// writeDispatchError classifies err and writes the tool-endpoint error
// envelope with the HTTP status mapped from its kind.
func writeDispatchError(w http.ResponseWriter, err error) {
	ce := errs.Classify(err)
	writeJSON(w, ce.Kind.HTTPStatus(), dispatchErrorEnvelope{
		Error:          true,
		ErrorType:      string(ce.Kind),
		Message:        ce.Message,
		SuggestionTool: ce.SuggestionTool,
	})
}

// decodeJSON reads and decodes a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}
