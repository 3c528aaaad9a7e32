// Package mcp implements the MCP Adapter: a single streamable-HTTP endpoint
// speaking MCP's JSON-RPC, mapping tools/call onto the Dispatch Engine and
// exposing the Tool Registry's descriptors as tools/list.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hostbridge/hostbridge/internal/dispatch"
	"github.com/hostbridge/hostbridge/internal/errs"
	"github.com/hostbridge/hostbridge/internal/registry"
)

const protocolVersion = "2024-11-05"

// ServerVersion is reported to clients in initialize responses.
var ServerVersion = "dev"

// Handler serves the MCP JSON-RPC endpoint over streamable HTTP.
type Handler struct {
	registry *registry.Registry
	dispatch *dispatch.Engine
	sessions *sessionManager
}

// New creates an MCP Handler bound to reg and disp.
func New(reg *registry.Registry, disp *dispatch.Engine) *Handler {
	return &Handler{registry: reg, dispatch: disp, sessions: newSessionManager()}
}

// SweepIdleSessions removes sessions that have been idle longer than
// maxIdle. Intended to be called periodically from a background loop.
func (h *Handler) SweepIdleSessions(maxIdle time.Duration) int {
	return h.sessions.sweep(maxIdle)
}

// ServeHTTP implements the single /mcp endpoint: POST carries a JSON-RPC
// request, DELETE ends the session named by the session header.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodDelete:
		h.handleDelete(w, r)
	case http.MethodPost:
		h.handlePost(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if id := r.Header.Get(SessionHeader); id != "" {
		h.sessions.close(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, CodeParseError, "malformed JSON-RPC request")
		return
	}

	sessionID := r.Header.Get(SessionHeader)
	if sessionID != "" {
		h.sessions.touch(sessionID)
	}

	switch req.Method {
	case "initialize":
		h.handleInitialize(w, r, req)
	case "notifications/initialized":
		w.WriteHeader(http.StatusAccepted)
	case "tools/list":
		h.handleToolsList(w, req)
	case "tools/call":
		h.handleToolsCall(w, r.Context(), req)
	default:
		writeRPCError(w, req.ID, CodeMethodNotFound, "unknown method "+req.Method)
	}
}

func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request, req Request) {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeRPCError(w, req.ID, CodeInvalidParams, "invalid initialize params")
			return
		}
	}

	s := h.sessions.create(params.ClientInfo.Name, params.ClientInfo.Version)
	w.Header().Set(SessionHeader, s.ID)

	writeRPCResult(w, req.ID, InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    ServerCapability{Tools: &ToolCapability{ListChanged: false}},
		ServerInfo:      ServerInfo{Name: "hostbridge", Version: ServerVersion},
	})
}

func (h *Handler) handleToolsList(w http.ResponseWriter, req Request) {
	descs := h.registry.List()
	tools := make([]Tool, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, Tool{
			Name:        d.MCPName(),
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	if slimToolsEnabled() {
		tools = minifyToolSchemas(tools)
	}
	writeRPCResult(w, req.ID, map[string]any{"tools": tools})
}

func (h *Handler) handleToolsCall(w http.ResponseWriter, ctx context.Context, req Request) {
	var call CallToolRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &call); err != nil {
			writeRPCError(w, req.ID, CodeInvalidParams, "invalid tools/call params")
			return
		}
	}

	category, name, ok := splitMCPName(call.Name)
	if !ok {
		writeRPCError(w, req.ID, CodeInvalidParams, "malformed tool name "+call.Name)
		return
	}

	var params map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &params); err != nil {
			writeRPCError(w, req.ID, CodeInvalidParams, "tool arguments must be a JSON object")
			return
		}
	}

	result, err := h.dispatch.Dispatch(ctx, dispatch.Invocation{
		Category: category,
		Name:     name,
		Params:   params,
		Protocol: "mcp",
	})
	if err != nil {
		ce := errs.Classify(err)
		writeRPCError(w, req.ID, ce.Kind.JSONRPCCode(), ce.Message)
		return
	}

	text, merr := json.Marshal(result)
	if merr != nil {
		slog.Error("failed to marshal tool result", "tool", call.Name, "error", merr)
		writeRPCError(w, req.ID, CodeInternalError, "failed to encode tool result")
		return
	}

	writeRPCResult(w, req.ID, CallToolResult{
		Content: []ToolContent{{Type: "text", Text: string(text)}},
	})
}

// splitMCPName reverses Descriptor.MCPName's "{category}_{name}" form. The
// category is the segment before the first underscore; the tool name is
// everything after it, so a name itself may contain underscores.
func splitMCPName(mcpName string) (category, name string, ok bool) {
	for i := 0; i < len(mcpName); i++ {
		if mcpName[i] == '_' {
			return mcpName[:i], mcpName[i+1:], true
		}
	}
	return "", "", false
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		writeRPCError(w, id, CodeInternalError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", ID: id, Result: raw})
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}})
}
