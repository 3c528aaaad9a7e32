package api

import (
	"net/http"

	"github.com/hostbridge/hostbridge/internal/audit"
	"github.com/hostbridge/hostbridge/internal/dispatch"
	"github.com/hostbridge/hostbridge/internal/hitl"
	"github.com/hostbridge/hostbridge/internal/store"
)

// RouterDeps holds the dependencies needed by the HTTP API router.
type RouterDeps struct {
	Dispatch    *dispatch.Engine
	AuditStore  store.AuditStore
	AuditBus    *audit.Bus
	HITLManager *hitl.Manager
	HITLBus     *hitl.Bus
	Secrets     secretsStore // optional; nil disables the secrets admin routes
}

// NewRouter builds the REST API: tool invocation, health, and the admin
// surfaces for HITL, audit, and secrets (list/reload only — values never
// returned).
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	th := &toolsHandler{dispatch: deps.Dispatch}
	mux.HandleFunc("POST /api/tools/{category}/{name}", th.call)

	mux.HandleFunc("GET /health", healthCheck)

	hh := &hitlHandler{manager: deps.HITLManager}
	mux.HandleFunc("GET /api/admin/hitl", hh.listPending)
	mux.HandleFunc("GET /api/admin/hitl/{id}", hh.get)
	mux.HandleFunc("POST /api/admin/hitl/{id}/decide", hh.decide)

	ah := &auditHandler{store: deps.AuditStore}
	mux.HandleFunc("GET /api/admin/audit", ah.query)
	mux.HandleFunc("GET /api/admin/audit/export", ah.export)

	if deps.Secrets != nil {
		sh := &secretsHandler{store: deps.Secrets}
		mux.HandleFunc("GET /api/admin/secrets", sh.list)
		mux.HandleFunc("POST /api/admin/secrets/reload", sh.reload)
	}

	if deps.HITLBus != nil {
		wh := &hitlWSHandler{manager: deps.HITLManager, bus: deps.HITLBus}
		mux.HandleFunc("GET /ws/hitl", wh.serve)
	}
	if deps.AuditBus != nil {
		wa := &auditWSHandler{store: deps.AuditStore, bus: deps.AuditBus}
		mux.HandleFunc("GET /ws/audit", wa.serve)
	}

	var handler http.Handler = mux
	handler = requireJSONContentTypeMiddleware(handler)
	handler = requestBodyLimitMiddleware(handler)
	handler = browserOriginProtectionMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = corsMiddleware(handler)
	return handler
}
