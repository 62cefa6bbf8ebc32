// Package identity models the authenticated user the dashboard acts for.
package identity

import (
	"fmt"
	"strings"
	"sync"

	"github.com/newthinker/stockdash/internal/core"
)

// Provider reports who, if anyone, is signed in.
type Provider interface {
	IsAuthenticated() bool
	UserID() string
}

// Session is a Provider whose user can change at runtime.
type Session struct {
	mu     sync.RWMutex
	userID string
}

// NewSession creates a session, signed in when userID is non-empty.
func NewSession(userID string) *Session {
	return &Session{userID: strings.TrimSpace(userID)}
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID != ""
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Login signs in as userID.
func (s *Session) Login(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.WrapError(core.ErrInvalidInput, fmt.Errorf("user id is required"))
	}
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
	return nil
}

// Register creates the account with the identity provider and signs in.
// Accounts live with the provider, so locally this is the same as Login.
func (s *Session) Register(userID string) error {
	return s.Login(userID)
}

// Logout drops back to local-only mode.
func (s *Session) Logout() {
	s.mu.Lock()
	s.userID = ""
	s.mu.Unlock()
}

type anonymous struct{}

func (anonymous) IsAuthenticated() bool { return false }
func (anonymous) UserID() string        { return "" }

// Anonymous returns a Provider that is never signed in.
func Anonymous() Provider {
	return anonymous{}
}

// UserIDOf returns the user ID when p is authenticated and "" otherwise.
func UserIDOf(p Provider) string {
	if p == nil || !p.IsAuthenticated() {
		return ""
	}
	return p.UserID()
}
