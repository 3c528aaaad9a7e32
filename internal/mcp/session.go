package mcp

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionHeader is the HTTP header carrying the MCP session id, per the
// streamable-HTTP transport. A client omits it on its first request
// (initialize) and echoes back the id the server assigns from then on.
const SessionHeader = "Mcp-Session-Id"

// Session tracks one connected MCP client across the lifetime of its
// streamable-HTTP connection.
type Session struct {
	ID         string
	ClientName string
	ClientInfo string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// sessionManager keeps the set of live MCP sessions. Unlike a multi-tenant
// gateway, HostBridge resolves every tool invocation against the single
// workspace root configured at startup, so a session here carries only
// identity and liveness, never routing state.
type sessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: make(map[string]*Session)}
}

// create starts a new session for an initialize request and returns its id.
func (sm *sessionManager) create(clientName, clientInfo string) *Session {
	now := time.Now()
	s := &Session{
		ID:         uuid.NewString(),
		ClientName: clientName,
		ClientInfo: clientInfo,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	sm.mu.Lock()
	sm.sessions[s.ID] = s
	sm.mu.Unlock()
	return s
}

// touch records activity on id and reports whether the session exists.
func (sm *sessionManager) touch(id string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s, ok := sm.sessions[id]
	if !ok {
		return false
	}
	s.LastSeenAt = time.Now()
	return true
}

// get returns the session for id, if any.
func (sm *sessionManager) get(id string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[id]
	return s, ok
}

// close ends a session (a client-initiated DELETE on the MCP endpoint).
func (sm *sessionManager) close(id string) {
	sm.mu.Lock()
	delete(sm.sessions, id)
	sm.mu.Unlock()
}

// sweep removes sessions that have been idle longer than maxIdle, returning
// the number removed. Intended to be called periodically by the server.
func (sm *sessionManager) sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	sm.mu.Lock()
	defer sm.mu.Unlock()
	removed := 0
	for id, s := range sm.sessions {
		if s.LastSeenAt.Before(cutoff) {
			delete(sm.sessions, id)
			removed++
		}
	}
	return removed
}
