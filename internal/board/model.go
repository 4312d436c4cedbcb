package board

import (
	"maps"
	"slices"
	"time"

	"postfolio/internal/patch"
)

// Post is an opaque embed document. Only "id" and "post" are interpreted.
type Post map[string]any

// ID returns the post identifier when it is a non-empty string.
func (p Post) ID() (string, bool) {
	id, ok := p["id"].(string)
	return id, ok && id != ""
}

type Board struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	BoardURL    string         `json:"board_url"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	SocialApp   string         `json:"social_app"`
	CTA         string         `json:"cta"`
	CTAURL      string         `json:"cta_url"`
	IsPublished bool           `json:"is_published"`
	Theme       map[string]any `json:"theme"`
	Posts       []Post         `json:"posts"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   *time.Time     `json:"last_updated"`
}

type CreateInput struct {
	BoardURL    string         `json:"board_url"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	SocialApp   string         `json:"social_app"`
	CTA         string         `json:"cta"`
	CTAURL      string         `json:"cta_url"`
	IsPublished bool           `json:"is_published"`
	Theme       map[string]any `json:"theme"`
	Posts       []Post         `json:"posts"`
}

// Patch carries a partial board update. Nil fields keep the stored value.
// Theme and posts have their own operations.
type Patch struct {
	BoardURL    *string `json:"board_url"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	SocialApp   *string `json:"social_app"`
	CTA         *string `json:"cta"`
	CTAURL      *string `json:"cta_url"`
	IsPublished *bool   `json:"is_published"`
}

// Apply merges p into existing and stamps the update time.
func Apply(existing Board, p Patch, now time.Time) Board {
	updated := existing
	updated.Theme = maps.Clone(existing.Theme)
	updated.Posts = slices.Clone(existing.Posts)

	patch.Field(&updated.BoardURL, p.BoardURL)
	patch.Field(&updated.Title, p.Title)
	patch.Field(&updated.Description, p.Description)
	patch.Field(&updated.SocialApp, p.SocialApp)
	patch.Field(&updated.CTA, p.CTA)
	patch.Field(&updated.CTAURL, p.CTAURL)
	patch.Field(&updated.IsPublished, p.IsPublished)

	stamp := now.UTC()
	updated.UpdatedAt = &stamp
	return updated
}
