package board

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"postfolio/internal/user"
)

func TestAuthorize(t *testing.T) {
	owner := user.User{ID: "u1", Boards: []string{"b1", "b2"}}

	cases := []struct {
		name    string
		user    user.User
		boardID string
		want    bool
	}{
		{"member", owner, "b2", true},
		{"not member", owner, "b3", false},
		{"empty board id", owner, "", false},
		{"no boards", user.User{ID: "u2"}, "b1", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Authorize(tc.user, tc.boardID))
		})
	}
}

func TestApply_KeepsUnsetFieldsAndCopiesDocuments(t *testing.T) {
	existing := Board{
		ID:        "b1",
		Title:     "Old",
		CTA:       "Hire me",
		Theme:     map[string]any{"color": "blue"},
		Posts:     []Post{{"id": "p1"}},
		UpdatedAt: nil,
	}
	title := "New"
	published := true
	now := mustTime(t, "2025-01-02T03:04:05Z")

	updated := Apply(existing, Patch{Title: &title, IsPublished: &published}, now)

	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "Hire me", updated.CTA)
	assert.True(t, updated.IsPublished)
	if assert.NotNil(t, updated.UpdatedAt) {
		assert.True(t, updated.UpdatedAt.Equal(now))
	}

	updated.Theme["color"] = "red"
	assert.Equal(t, "blue", existing.Theme["color"])
	assert.Nil(t, existing.UpdatedAt)
}

func TestPostID(t *testing.T) {
	id, ok := Post{"id": "p1"}.ID()
	assert.True(t, ok)
	assert.Equal(t, "p1", id)

	_, ok = Post{"id": 7}.ID()
	assert.False(t, ok)
	_, ok = Post{"id": ""}.ID()
	assert.False(t, ok)
}
