package user

import (
	"context"
	"slices"
	"time"

	"postfolio/internal/patch"
)

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	IsVerified   bool       `json:"is_verified"`
	Boards       []string   `json:"boards"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"last_updated"`
}

// HasBoard reports whether boardID is in the user's board list.
func (u User) HasBoard(boardID string) bool {
	return slices.Contains(u.Boards, boardID)
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Patch carries a partial update. Nil fields keep the stored value.
type Patch struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

// Apply merges p into existing and stamps the update time.
func Apply(existing User, p Patch, now time.Time) User {
	updated := existing
	updated.Boards = slices.Clone(existing.Boards)
	patch.Field(&updated.Username, p.Username)
	patch.Field(&updated.Email, p.Email)
	stamp := now.UTC()
	updated.UpdatedAt = &stamp
	return updated
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying the authenticated user.
func NewContext(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the user stored by NewContext.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(contextKey{}).(User)
	return u, ok
}
