package client

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/studysync/internal/auth"
)

// Session is the signed-in identity
type Session struct {
	AccessToken string    `yaml:"access_token" json:"access_token"`
	ExpiresAt   time.Time `yaml:"expires_at" json:"expires_at"`
	UserID      uuid.UUID `yaml:"user_id" json:"user_id"`
	Email       string    `yaml:"email" json:"email"`
}

// Expired reports whether the token is past its expiry
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AuthEvent names an auth state change
type AuthEvent string

const (
	AuthSignedIn  AuthEvent = "SIGNED_IN"
	AuthSignedOut AuthEvent = "SIGNED_OUT"
	AuthRestored  AuthEvent = "RESTORED"
)

// AuthListener is told about every auth state change. session is nil after
// sign-out.
type AuthListener func(event AuthEvent, session *Session)

// OnAuthStateChange registers fn and returns a function removing it
func (c *Client) OnAuthStateChange(fn AuthListener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// CurrentSession returns the signed-in session, or nil
func (c *Client) CurrentSession() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// AccessToken returns the bearer token, or ""
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// Restore installs a session saved earlier, without contacting the server
func (c *Client) Restore(s *Session) {
	c.setSession(AuthRestored, s)
}

// SignUp creates an account and signs in
func (c *Client) SignUp(ctx context.Context, email, password, name string) (*Session, error) {
	var resp auth.SessionResponse
	if _, err := c.apiCall(ctx, http.MethodPost, "/auth/signup", auth.SignUpRequest{Email: email, Password: password, Name: name}, &resp); err != nil {
		return nil, err
	}
	return c.signedIn(&resp), nil
}

// SignIn exchanges credentials for a session
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var resp auth.SessionResponse
	if _, err := c.apiCall(ctx, http.MethodPost, "/auth/signin", auth.SignInRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return c.signedIn(&resp), nil
}

// SignOut revokes the token. Local state is cleared even if the server call
// fails.
func (c *Client) SignOut(ctx context.Context) error {
	var err error
	if c.AccessToken() != "" {
		_, err = c.apiCall(ctx, http.MethodPost, "/auth/signout", nil, nil)
	}
	c.setSession(AuthSignedOut, nil)
	return err
}

// FetchSession asks the server whether the stored token is still valid
func (c *Client) FetchSession(ctx context.Context) (*Session, error) {
	var resp auth.SessionResponse
	if _, err := c.apiCall(ctx, http.MethodGet, "/auth/session", nil, &resp); err != nil {
		return nil, err
	}
	return toSession(&resp), nil
}

func (c *Client) signedIn(resp *auth.SessionResponse) *Session {
	s := toSession(resp)
	c.setSession(AuthSignedIn, s)
	return s
}

func toSession(resp *auth.SessionResponse) *Session {
	return &Session{
		AccessToken: resp.AccessToken,
		ExpiresAt:   resp.ExpiresAt,
		UserID:      resp.User.ID,
		Email:       resp.User.Email,
	}
}

func (c *Client) setSession(event AuthEvent, s *Session) {
	c.mu.Lock()
	c.session = s
	listeners := make([]AuthListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		var copied *Session
		if s != nil {
			v := *s
			copied = &v
		}
		fn(event, copied)
	}
}
