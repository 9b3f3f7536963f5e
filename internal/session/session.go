// Package session tracks the authenticated identity bound to the current
// tenant connection. All remote paths are scoped under this identity; while
// it is absent every sync operation falls back to the local mirror.
package session

import (
	"sync"

	"go.uber.org/zap"
)

// State is the session identity state
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Manager holds the current session identity. Operations never block waiting
// for a state transition; callers check the current state and fall back
// immediately.
type Manager struct {
	mu        sync.RWMutex
	state     State
	userID    string
	callbacks []func(userID string, signedIn bool)
	logger    *zap.Logger
}

// NewManager creates a signed-out session manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// State returns the current identity state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Identity returns the session identity and whether one is present
func (m *Manager) Identity() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID, m.state == Authenticated
}

// Begin moves to Authenticating. It is advisory; a failed sign-in must be
// finished with Fail.
func (m *Manager) Begin() {
	m.mu.Lock()
	m.state = Authenticating
	m.mu.Unlock()
}

// SignIn binds userID to the session and notifies auth callbacks
func (m *Manager) SignIn(userID string) {
	m.mu.Lock()
	m.state = Authenticated
	m.userID = userID
	callbacks := append([]func(string, bool){}, m.callbacks...)
	m.mu.Unlock()

	m.logger.Info("Session authenticated", zap.String("user_id", userID))
	for _, cb := range callbacks {
		cb(userID, true)
	}
}

// Fail records an authentication failure; the session stays unauthenticated
func (m *Manager) Fail() {
	m.mu.Lock()
	m.state = Unauthenticated
	m.userID = ""
	m.mu.Unlock()

	m.logger.Warn("Authentication failed")
}

// SignOut clears the identity and notifies auth callbacks. Callers must
// detach standing subscriptions before calling this so no stale callback
// fires against a now-invalid scope.
func (m *Manager) SignOut() {
	m.mu.Lock()
	userID := m.userID
	m.state = Unauthenticated
	m.userID = ""
	callbacks := append([]func(string, bool){}, m.callbacks...)
	m.mu.Unlock()

	if userID != "" {
		m.logger.Info("Session signed out", zap.String("user_id", userID))
	}
	for _, cb := range callbacks {
		cb(userID, false)
	}
}

// OnAuthChange registers a callback for sign-in and sign-out transitions
func (m *Manager) OnAuthChange(cb func(userID string, signedIn bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}
