package mcp

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Session is one MCP Streamable HTTP conversation, identified by the
// Mcp-Session-Id header. Grounded structurally on the teacher's
// session.Manager (open/get/prune-by-age lifecycle over a named
// collection), adapted from disk-persisted named project sessions to
// ephemeral in-memory entries keyed by a generated id.
type Session struct {
	ID              string
	ProtocolVersion string
	CreatedAt       time.Time
	LastSeen        time.Time
}

// SessionManager tracks open MCP sessions in memory. Sessions never touch
// disk: a restart drops every open conversation, which is acceptable since
// MCP clients re-initialize on reconnect.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager builds an empty, ready-to-use SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Open creates a fresh session for an `initialize` call and returns its id.
func (m *SessionManager) Open(protocolVersion string) *Session {
	now := time.Now()
	sess := &Session{
		ID:              newSessionID(),
		ProtocolVersion: protocolVersion,
		CreatedAt:       now,
		LastSeen:        now,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	return sess
}

// Touch validates a session id and refreshes its last-seen timestamp,
// reporting whether the session exists.
func (m *SessionManager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return false
	}
	sess.LastSeen = time.Now()
	return true
}

// Exists reports whether id names a currently open session, without
// refreshing its last-seen timestamp.
func (m *SessionManager) Exists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}

// Close terminates a session (DELETE /mcp), reporting whether it existed.
func (m *SessionManager) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Count returns the number of currently open sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// PruneIdleSessions removes every session whose last-seen timestamp is
// older than olderThan, returning the count removed. Implements
// gc.SessionPruner so internal/gc's cron sweep can reach this table
// without internal/gc importing internal/mcp.
func (m *SessionManager) PruneIdleSessions(olderThan time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	pruned := 0
	for id, sess := range m.sessions {
		if now.Sub(sess.LastSeen) > olderThan {
			delete(m.sessions, id)
			pruned++
		}
	}
	return pruned
}

func newSessionID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
