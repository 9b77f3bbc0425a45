package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAuth(t *testing.T) {
	user := uuid.New()
	verify := func(_ context.Context, token string) (uuid.UUID, error) {
		if token == "good" {
			return user, nil
		}
		return uuid.Nil, errors.New("bad token")
	}

	var seen uuid.UUID
	h := Auth(verify)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"valid header", "Bearer good", "", http.StatusNoContent},
		{"lowercase scheme", "bearer good", "", http.StatusNoContent},
		{"query token", "", "?access_token=good", http.StatusNoContent},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = uuid.Nil
			req := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, user, seen)
			}
		})
	}
}

func TestGetUserIDMissing(t *testing.T) {
	_, ok := GetUserID(context.Background())
	assert.False(t, ok)
}
