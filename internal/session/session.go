// Package session holds the authenticated user's identity and the per-account
// filesystem layout under ~/.moim.
package session

import "sync"

// Session is the authenticated user context. It is zero until login succeeds
// and zero again after logout; everything session-scoped reads its fields
// through Current.
type Session struct {
	mu     sync.RWMutex
	active bool
	userID string
	name   string
	token  string
}

// User is a snapshot of the logged-in identity.
type User struct {
	UserID string
	Name   string
	Token  string
}

// NewSession returns an inactive session.
func NewSession() *Session {
	return &Session{}
}

// Begin installs the identity after a successful login.
func (s *Session) Begin(userID, name, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.userID = userID
	s.name = name
	s.token = token
}

// End clears the identity on logout.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.userID = ""
	s.name = ""
	s.token = ""
}

// Active reports whether a user is logged in.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Current returns the logged-in identity; ok is false when logged out.
func (s *Session) Current() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active {
		return User{}, false
	}
	return User{UserID: s.userID, Name: s.name, Token: s.token}, true
}

// UserID returns the logged-in user id, empty when logged out.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}
