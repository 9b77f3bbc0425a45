package studysync

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/fkhayef/studysync/internal/client"
)

// ErrSignedOut is returned by operations that need an identity
var ErrSignedOut = errors.New("not signed in")

// AuthClient is the part of the API client a Session follows
type AuthClient interface {
	CurrentSession() *client.Session
	OnAuthStateChange(fn client.AuthListener) func()
	SignOut(ctx context.Context) error
}

// Session is the explicit identity handed to every view. It follows the
// client's auth state until Close.
type Session struct {
	client AuthClient
	stop   func()

	mu      sync.RWMutex
	current *client.Session
	onEnd   []func()
}

// NewSession starts following c's auth state
func NewSession(c AuthClient) *Session {
	s := &Session{client: c, current: c.CurrentSession()}
	s.stop = c.OnAuthStateChange(s.changed)
	return s
}

func (s *Session) changed(_ client.AuthEvent, current *client.Session) {
	s.mu.Lock()
	s.current = current
	var ended []func()
	if current == nil {
		ended = s.onEnd
		s.onEnd = nil
	}
	s.mu.Unlock()

	for _, fn := range ended {
		fn()
	}
}

// UserID returns the signed-in user
func (s *Session) UserID() (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return uuid.Nil, ErrSignedOut
	}
	return s.current.UserID, nil
}

// Email returns the signed-in user's email, or ""
func (s *Session) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Email
}

// OnSignOut registers fn to run once when the user signs out. Views use it
// to tear themselves down.
func (s *Session) OnSignOut(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

// SignOut ends the session on the server and locally
func (s *Session) SignOut(ctx context.Context) error {
	return s.client.SignOut(ctx)
}

// Close stops following auth state
func (s *Session) Close() {
	s.stop()
}
