// SPDX-License-Identifier: Apache-2.0

package authoring

import (
	"fmt"
	"sync"

	"github.com/kordes/flowstudio/internal/domain"
)

// Manager owns at most one live authoring session. The host is
// single-session by contract: opening a second session while one exists is
// a precondition violation, not a queueing request.
type Manager struct {
	mu      sync.Mutex
	deps    Deps
	current *Session
}

func NewManager(deps Deps) *Manager {
	return &Manager{deps: deps}
}

// Open starts a new session. Fails with ErrSessionOpen while another
// session, completed or not, has not been closed.
func (m *Manager) Open() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, fmt.Errorf("open authoring session: %w", domain.ErrSessionOpen)
	}
	m.current = newSession(m.deps)
	return m.current, nil
}

// Current returns the live session, if any.
func (m *Manager) Current() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != nil
}

// Close discards the live session, canceling any outstanding interpreter
// call. Closing with no session open is a no-op.
func (m *Manager) Close() {
	m.mu.Lock()
	session := m.current
	m.current = nil
	m.mu.Unlock()

	if session != nil {
		session.close()
	}
}
