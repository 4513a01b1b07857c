// Package whatsapp – session.go tracks the connection lifecycle. One
// session value holds the state machine, activity and error counters, so
// Health and the reconnect logic read a consistent view.
package whatsapp

import (
	"sync"
	"time"
)

// ConnectionState is the lifecycle state of the WhatsApp session.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateWaitingQR    ConnectionState = "waiting_qr"
	StateBanned       ConnectionState = "banned"
)

// session is safe for concurrent use. Only StateConnected counts as online.
type session struct {
	mu           sync.Mutex
	state        ConnectionState
	since        time.Time
	lastActivity time.Time
	errors       int
	attempts     int
}

// sessionStatus is a point-in-time copy of a session.
type sessionStatus struct {
	State        ConnectionState
	Since        time.Time
	LastActivity time.Time
	Errors       int
	Attempts     int
}

func newSession(now time.Time) *session {
	return &session{state: StateDisconnected, since: now}
}

// moveTo sets the state and returns the previous one.
func (s *session) moveTo(state ConnectionState, now time.Time) ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	if prev != state {
		s.state = state
		s.since = now
	}
	return prev
}

// online marks the session connected and resets the failure counters.
func (s *session) online(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		s.state = StateConnected
		s.since = now
	}
	s.lastActivity = now
	s.errors = 0
	s.attempts = 0
}

func (s *session) current() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) isOnline() bool { return s.current() == StateConnected }

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

func (s *session) failed() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

func (s *session) clearErrors() {
	s.mu.Lock()
	s.errors = 0
	s.mu.Unlock()
}

// nextAttempt counts a reconnect attempt and returns its number.
func (s *session) nextAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	return s.attempts
}

// silentFor is how long a connected session has gone without activity.
// It is zero in any other state.
func (s *session) silentFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return 0
	}
	return now.Sub(s.lastActivity)
}

func (s *session) status() sessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sessionStatus{
		State:        s.state,
		Since:        s.since,
		LastActivity: s.lastActivity,
		Errors:       s.errors,
		Attempts:     s.attempts,
	}
}
