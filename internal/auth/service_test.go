package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fkhayef/studysync/pkg/response"
)

type memoryStore struct {
	mu    sync.Mutex
	users map[string]*User
	names map[uuid.UUID]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]*User), names: make(map[uuid.UUID]string)}
}

func (m *memoryStore) Create(_ context.Context, email, hash, name string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; ok {
		return nil, ErrEmailAlreadyInUse
	}
	u := &User{ID: uuid.New(), Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	m.users[email] = u
	m.names[u.ID] = name
	return u, nil
}

func (m *memoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[email], nil
}

func (m *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func newTestService(t *testing.T) (*Service, *memoryStore) {
	store := newMemoryStore()
	svc := NewService(store, NewTokens("secret", "studysync", time.Hour), NewMemoryDenylist(), zaptest.NewLogger(t))
	return svc, store
}

func TestSignUpCreatesProfileName(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, &SignUpRequest{Email: " Ada@Example.com ", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", session.User.Email)
	assert.Equal(t, "ada", store.names[session.User.ID])

	_, err = svc.SignUp(ctx, &SignUpRequest{Email: "ada@example.com", Password: "password2"})
	assert.ErrorIs(t, err, ErrEmailAlreadyInUse)

	_, err = svc.SignUp(ctx, &SignUpRequest{Email: "bob@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidSignUp)
	_, err = svc.SignUp(ctx, &SignUpRequest{Email: "not-an-email", Password: "password1"})
	assert.ErrorIs(t, err, ErrInvalidSignUp)
}

func TestSignInAndSignOut(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, &SignUpRequest{Email: "ada@example.com", Password: "password1", Name: "Ada"})
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, &SignInRequest{Email: "ada@example.com", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, &SignInRequest{Email: "ghost@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	session, err := svc.SignIn(ctx, &SignInRequest{Email: "ADA@example.com", Password: "password1"})
	require.NoError(t, err)

	id, err := svc.VerifyToken(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, id)

	require.NoError(t, svc.SignOut(ctx, session.AccessToken))
	_, err = svc.VerifyToken(ctx, session.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestHandlerSignUpFlow(t *testing.T) {
	svc, _ := newTestService(t)
	srv := httptest.NewServer(NewHandler(svc).Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/signup", "application/json",
		strings.NewReader(`{"email":"ada@example.com","password":"password1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Success bool            `json:"success"`
		Data    SessionResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "bearer", body.Data.TokenType)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/session", nil)
	req.Header.Set("Authorization", "Bearer "+body.Data.AccessToken)
	sessionResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	sessionResp.Body.Close()
	assert.Equal(t, http.StatusOK, sessionResp.StatusCode)

	dup, err := http.Post(srv.URL+"/signup", "application/json",
		strings.NewReader(`{"email":"ada@example.com","password":"password1"}`))
	require.NoError(t, err)
	defer dup.Body.Close()
	assert.Equal(t, http.StatusConflict, dup.StatusCode)

	var errBody response.APIResponse
	require.NoError(t, json.NewDecoder(dup.Body).Decode(&errBody))
	assert.Equal(t, response.CodeConflict, errBody.Error.Code)
}
