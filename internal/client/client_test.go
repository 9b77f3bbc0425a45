package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/studysync/internal/auth"
	"github.com/fkhayef/studysync/internal/session"
	"github.com/fkhayef/studysync/pkg/response"
)

func TestSignInStoresSessionAndNotifies(t *testing.T) {
	userID := uuid.New()
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var req auth.SignInRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "correct horse" {
			response.Unauthorized(w, "invalid email or password")
			return
		}
		response.JSON(w, http.StatusOK, auth.SessionResponse{
			AccessToken: "tok-1",
			TokenType:   "bearer",
			ExpiresAt:   expires,
			User:        auth.UserResponse{ID: userID, Email: req.Email},
		})
	})
	mux.HandleFunc("POST /api/v1/auth/signout", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		response.NoContent(w)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := New(ts.URL)
	var events []AuthEvent
	stop := c.OnAuthStateChange(func(ev AuthEvent, s *Session) {
		events = append(events, ev)
		if ev == AuthSignedIn {
			assert.Equal(t, userID, s.UserID)
		} else {
			assert.Nil(t, s)
		}
	})
	defer stop()

	_, err := c.SignIn(context.Background(), "ada@example.com", "wrong")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, response.CodeUnauthorized, apiErr.Code)
	assert.Nil(t, c.CurrentSession())

	s, err := c.SignIn(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", s.AccessToken)
	assert.True(t, expires.Equal(s.ExpiresAt))
	assert.Equal(t, "tok-1", c.AccessToken())

	require.NoError(t, c.SignOut(context.Background()))
	assert.Nil(t, c.CurrentSession())
	assert.Equal(t, []AuthEvent{AuthSignedIn, AuthSignedOut}, events)
}

func TestOnAuthStateChangeUnsubscribe(t *testing.T) {
	c := New("http://unused")
	calls := 0
	stop := c.OnAuthStateChange(func(AuthEvent, *Session) { calls++ })
	c.Restore(&Session{AccessToken: "x"})
	stop()
	c.Restore(&Session{AccessToken: "y"})
	assert.Equal(t, 1, calls)
	assert.Equal(t, "y", c.AccessToken())
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	assert.True(t, (&Session{ExpiresAt: now.Add(-time.Minute)}).Expired(now))
	assert.False(t, (&Session{ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.False(t, (&Session{}).Expired(now))
}

func TestErrorCodes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.ConflictCode(w, response.CodeGroupFull, "Group is full")
	}))
	defer ts.Close()

	c := New(ts.URL)
	_, err := c.JoinGroup(context.Background(), uuid.New(), "")
	require.Error(t, err)
	assert.True(t, IsCode(err, response.CodeGroupFull))
	assert.False(t, IsCode(err, response.CodeDuplicate))
	assert.Contains(t, err.Error(), "Group is full")
}

func TestNonJSONErrorStillTyped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL).MyGroups(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestSetAttendance(t *testing.T) {
	sessionID, userID := uuid.New(), uuid.New()
	updated := time.Now().UTC().Truncate(time.Millisecond)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/sessions/"+sessionID.String()+"/attendance", r.URL.Path)
		var req session.AttendanceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		response.JSON(w, http.StatusOK, session.Attendance{
			ID: uuid.New(), SessionID: sessionID, UserID: userID, Status: req.Status, UpdatedAt: updated,
		})
	}))
	defer ts.Close()

	a, err := New(ts.URL).SetAttendance(context.Background(), sessionID, session.StatusTentative)
	require.NoError(t, err)
	assert.Equal(t, session.StatusTentative, a.Status)
	assert.True(t, updated.Equal(a.UpdatedAt))
}

func TestSearchGroupsMeta(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "calc", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		response.JSONWithMeta(w, http.StatusOK, []map[string]any{{"id": uuid.NewString(), "name": "Calculus"}}, &response.Meta{Page: 2, PerPage: 1, Total: 7})
	}))
	defer ts.Close()

	groups, total, err := New(ts.URL).SearchGroups(context.Background(), "calc", 2, 1)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Calculus", groups[0].Name)
	assert.Equal(t, 7, total)
}

func TestPutObject(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/object/studysync/group-1/a.pdf", r.URL.Path)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		assert.Equal(t, "3600", r.Header.Get("Cache-Control"))
		assert.Empty(t, r.Header.Get("x-upsert"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "%PDF", string(body))
		response.JSON(w, http.StatusCreated, map[string]any{
			"key": "group-1/a.pdf", "bucket": "studysync",
			"public_url": "http://cdn.test/storage/v1/object/public/studysync/group-1/a.pdf",
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	u, err := c.PutObject(context.Background(), "studysync", "group-1/a.pdf", strings.NewReader("%PDF"), 4,
		PutOptions{ContentType: "application/pdf", CacheControl: "3600", NoOverwrite: true})
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.test/storage/v1/object/public/studysync/group-1/a.pdf", u)
	assert.Equal(t, ts.URL+"/storage/v1/object/public/studysync/k.png", c.PublicURL("studysync", "k.png"))
}
