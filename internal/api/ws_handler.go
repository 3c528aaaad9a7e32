package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hostbridge/hostbridge/internal/audit"
	"github.com/hostbridge/hostbridge/internal/hitl"
	"github.com/hostbridge/hostbridge/internal/store"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return r.Header.Get("Origin") == "" || isLocalOrigin(r.Header.Get("Origin")) },
}

// wsFrame is the {type, data} envelope every frame on both sockets uses.
type wsFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// hitlDecisionFrame is the only client->server frame the HITL socket accepts
// besides request_pending (which is informational and ignored server-side).
type hitlDecisionFrame struct {
	ID       string `json:"id"`
	Decision string `json:"decision"` // "approve" or "reject"
	Reviewer string `json:"reviewer"`
	Note     string `json:"note"`
}

// hitlWSHandler streams HITL Manager events: a snapshot of pending requests
// on connect, then incremental created/updated events.
type hitlWSHandler struct {
	manager *hitl.Manager
	bus     *hitl.Bus
}

func (h *hitlWSHandler) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("hitl websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	sub, snapshot := h.manager.SubscribeWithSnapshot()
	defer h.bus.Unsubscribe(sub)

	if err := writeWSJSON(conn, wsFrame{Type: "snapshot", Data: snapshot}); err != nil {
		return
	}

	done := make(chan struct{})
	go h.readLoop(conn, done)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if err := writeWSJSON(conn, wsFrame{Type: "hitl_" + evt.Type, Data: evt.Request}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop acts on hitl_decision frames from the admin client; all other
// inbound frame types, request_pending included, are ignored.
func (h *hitlWSHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame wsFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Type != "hitl_decision" {
			continue
		}
		payload, err := json.Marshal(frame.Data)
		if err != nil {
			continue
		}
		var dec hitlDecisionFrame
		if err := json.Unmarshal(payload, &dec); err != nil {
			continue
		}
		approve := dec.Decision == "approve"
		if err := h.manager.Decide(dec.ID, approve, dec.Reviewer, dec.Note); err != nil {
			slog.Warn("hitl websocket decision failed", "id", dec.ID, "error", err)
		}
	}
}

// auditWSHandler streams audit entries: a query-backed snapshot on connect,
// then every subsequent entry as it's written.
type auditWSHandler struct {
	store store.AuditStore
	bus   *audit.Bus
}

func (h *auditWSHandler) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("audit websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	entries, _, err := h.store.QueryAuditEntries(r.Context(), store.AuditFilter{Limit: 100})
	if err == nil {
		if err := writeWSJSON(conn, wsFrame{Type: "snapshot", Data: entries}); err != nil {
			return
		}
	}

	go discardInbound(conn)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-sub:
			if !ok {
				return
			}
			if err := writeWSJSON(conn, wsFrame{Type: "audit_entry", Data: entry}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// discardInbound drains and ignores any client frames so the connection's
// read deadline and close handshake keep working.
func discardInbound(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeWSJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}
