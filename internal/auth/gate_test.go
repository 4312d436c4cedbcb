package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postfolio/internal/common"
	"postfolio/internal/store/memory"
	"postfolio/internal/user"
)

func seedGate(t *testing.T) (*Gate, *TokenService, user.User) {
	t.Helper()
	store := memory.New()
	u, err := store.Users().Create(context.Background(), user.User{ID: "user-1", Email: "a@example.com", CreatedAt: time.Now()})
	require.NoError(t, err)

	tokens := newTokenService(t)
	return NewGate(tokens, user.NewService(store.Users())), tokens, u
}

func TestGateMiddleware(t *testing.T) {
	gate, tokens, u := seedGate(t)

	var seen user.User
	protected := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = user.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	valid, err := tokens.IssueAccess(u.ID)
	require.NoError(t, err)
	orphan, err := tokens.IssueAccess("ghost")
	require.NoError(t, err)
	refresh, err := tokens.IssueRefresh(u.ID)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + valid, http.StatusNoContent},
		{"lowercase scheme", "bearer " + valid, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
		{"unknown user", "Bearer " + orphan, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/user", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
				assert.JSONEq(t, `{"message":"Invalid token"}`, rec.Body.String())
			}
		})
	}

	assert.Equal(t, u.ID, seen.ID)
}

func TestGateAuthenticateConnection(t *testing.T) {
	gate, tokens, u := seedGate(t)

	valid, err := tokens.IssueAccess(u.ID)
	require.NoError(t, err)

	got, err := gate.AuthenticateConnection(httptest.NewRequest(http.MethodGet, "/live/posts/add/b1?token="+valid, nil))
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = gate.AuthenticateConnection(httptest.NewRequest(http.MethodGet, "/live/posts/add/b1", nil))
	require.ErrorIs(t, err, ErrInvalidToken)

	orphan, err := tokens.IssueAccess("ghost")
	require.NoError(t, err)
	_, err = gate.AuthenticateConnection(httptest.NewRequest(http.MethodGet, "/live/posts/add/b1?token="+orphan, nil))
	require.ErrorIs(t, err, common.ErrNotFound)
}
