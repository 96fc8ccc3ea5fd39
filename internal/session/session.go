// Package session keeps per-conversation history in memory. History is
// rendered as plain text for the orchestrator, which treats it as
// background context rather than replayable turns.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type exchange struct {
	user      string
	assistant string
}

// Manager is a mutex-guarded map of session id to a bounded exchange
// list. Safe for concurrent requests.
type Manager struct {
	mu         sync.Mutex
	maxHistory int
	sessions   map[string][]exchange
}

// NewManager creates a Manager keeping at most maxHistory exchanges per
// session.
func NewManager(maxHistory int) *Manager {
	if maxHistory < 1 {
		maxHistory = 1
	}
	return &Manager{
		maxHistory: maxHistory,
		sessions:   make(map[string][]exchange),
	}
}

// Create starts a new session and returns its id.
func (m *Manager) Create() string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = nil
	m.mu.Unlock()
	return id
}

// AddExchange records one completed question/answer pair, evicting the
// oldest exchange beyond the history bound.
func (m *Manager) AddExchange(id, userMessage, assistantMessage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex := append(m.sessions[id], exchange{user: userMessage, assistant: assistantMessage})
	if len(ex) > m.maxHistory {
		ex = ex[len(ex)-m.maxHistory:]
	}
	m.sessions[id] = ex
}

// History renders a session's exchanges as text, oldest first. Returns
// "" for unknown or empty sessions.
func (m *Manager) History(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex := m.sessions[id]
	if len(ex) == 0 {
		return ""
	}
	var b strings.Builder
	for i, e := range ex {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "User: %s\nAssistant: %s", e.user, e.assistant)
	}
	return b.String()
}

// Clear drops a session's history but keeps the session alive.
func (m *Manager) Clear(id string) {
	m.mu.Lock()
	m.sessions[id] = nil
	m.mu.Unlock()
}
