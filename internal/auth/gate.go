package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"postfolio/internal/common"
	"postfolio/internal/httpx"
	"postfolio/internal/user"
)

type UserFinder interface {
	Get(ctx context.Context, id string) (user.User, error)
}

// Gate resolves the caller behind a token into a stored user.
type Gate struct {
	tokens *TokenService
	users  UserFinder
}

func NewGate(tokens *TokenService, users UserFinder) *Gate {
	return &Gate{tokens: tokens, users: users}
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, err := g.authenticate(r.Context(), bearerToken(r))
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidToken):
				w.Header().Set("WWW-Authenticate", "Bearer")
				httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid token")
			case errors.Is(err, common.ErrNotFound):
				httpx.WriteMessage(w, http.StatusNotFound, "User not found")
			default:
				sentry.CaptureException(err)
				httpx.WriteMessage(w, http.StatusInternalServerError, "failed to authenticate")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(user.NewContext(r.Context(), current)))
	})
}

// AuthenticateConnection resolves the caller of a streaming endpoint from the
// "token" query parameter.
func (g *Gate) AuthenticateConnection(r *http.Request) (user.User, error) {
	return g.authenticate(r.Context(), r.URL.Query().Get("token"))
}

func (g *Gate) authenticate(ctx context.Context, token string) (user.User, error) {
	if token == "" {
		return user.User{}, ErrInvalidToken
	}

	subject, err := g.tokens.Validate(token)
	if err != nil {
		return user.User{}, err
	}

	return g.users.Get(ctx, subject)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
