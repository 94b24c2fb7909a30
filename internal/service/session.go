package service

import (
	"sync"
	"time"

	"notes-sync-client/pkg/jwt"
)

// Session reports whether remote calls may be attempted.
type Session interface {
	IsOnline() bool
	Token() string
	// AuthError returns nil when the session can be used, ErrNotAuthenticated when no
	// token is set and ErrCookieExpired when the token is past its expiry.
	AuthError() error
}

type SessionState struct {
	mu     sync.RWMutex
	online bool
	token  string
	now    func() time.Time
}

func NewSessionState(token string, online bool) *SessionState {
	return &SessionState{
		online: online,
		token:  token,
		now:    time.Now,
	}
}

func (s *SessionState) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// SetOnline records connectivity and reports whether it was just restored.
func (s *SessionState) SetOnline(online bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored := online && !s.online
	s.online = online
	return restored
}

func (s *SessionState) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *SessionState) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// ExpiresAt returns the expiry carried by the token, if it has one.
func (s *SessionState) ExpiresAt() (time.Time, bool) {
	return jwt.ExpiresAt(s.Token())
}

func (s *SessionState) AuthError() error {
	token := s.Token()
	if token == "" {
		return ErrNotAuthenticated
	}
	if exp, ok := jwt.ExpiresAt(token); ok && !s.now().Before(exp) {
		return ErrCookieExpired
	}
	return nil
}

// canReachRemote reports whether a foreground mutation should call the remote directly.
func canReachRemote(s Session) bool {
	return s.IsOnline() && s.AuthError() == nil
}
