package board

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"postfolio/internal/common"
	"postfolio/internal/embed"
	"postfolio/internal/user"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrPostNotFound = fmt.Errorf("post %w", common.ErrNotFound)
)

// Store is the persistence contract for board documents. Create must link
// the board to its owner atomically with the insert.
type Store interface {
	Create(ctx context.Context, b Board) (Board, error)
	GetByID(ctx context.Context, id string) (Board, error)
	ListByIDs(ctx context.Context, ids []string) ([]Board, error)
	Save(ctx context.Context, b Board) (Board, error)
	SetTheme(ctx context.Context, id string, theme map[string]any, now time.Time) (Board, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	AppendPost(ctx context.Context, boardID string, post Post, now time.Time) error
	ReplacePostBody(ctx context.Context, boardID, postID string, body any, now time.Time) error
	RemovePost(ctx context.Context, boardID, postID string, now time.Time) error
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Create(ctx context.Context, owner user.User, input CreateInput) (Board, error) {
	if err := validateCreate(&input); err != nil {
		return Board{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Board{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	theme := input.Theme
	if theme == nil {
		theme = map[string]any{}
	}
	posts := input.Posts
	if posts == nil {
		posts = []Post{}
	}

	return s.store.Create(ctx, Board{
		ID:          id.String(),
		UserID:      owner.ID,
		BoardURL:    input.BoardURL,
		Title:       input.Title,
		Description: input.Description,
		SocialApp:   input.SocialApp,
		CTA:         input.CTA,
		CTAURL:      input.CTAURL,
		IsPublished: input.IsPublished,
		Theme:       theme,
		Posts:       posts,
		CreatedAt:   s.now().UTC(),
	})
}

// Access loads the board and applies the access policy, in that order.
// A missing board yields common.ErrNotFound, a non-member common.ErrForbidden.
func (s *Service) Access(ctx context.Context, caller user.User, boardID string) (Board, error) {
	b, err := s.store.GetByID(ctx, boardID)
	if err != nil {
		return Board{}, err
	}
	if !Authorize(caller, b.ID) {
		return Board{}, common.ErrForbidden
	}
	return b, nil
}

func (s *Service) ListForUser(ctx context.Context, caller user.User) ([]Board, error) {
	return s.store.ListByIDs(ctx, caller.Boards)
}

func (s *Service) Update(ctx context.Context, caller user.User, boardID string, p Patch) (Board, error) {
	existing, err := s.Access(ctx, caller, boardID)
	if err != nil {
		return Board{}, err
	}

	updated := Apply(existing, p, s.now())
	if err := validateBoard(updated); err != nil {
		return Board{}, err
	}

	return s.store.Save(ctx, updated)
}

func (s *Service) SetTheme(ctx context.Context, caller user.User, boardID string, theme map[string]any) (Board, error) {
	if _, err := s.Access(ctx, caller, boardID); err != nil {
		return Board{}, err
	}
	if theme == nil {
		theme = map[string]any{}
	}
	return s.store.SetTheme(ctx, boardID, theme, s.now())
}

func (s *Service) Delete(ctx context.Context, caller user.User, boardID string) error {
	if _, err := s.Access(ctx, caller, boardID); err != nil {
		return err
	}
	return s.store.Delete(ctx, boardID)
}

// Portfolio returns a board for public display without any caller checks.
func (s *Service) Portfolio(ctx context.Context, boardID string) (Board, error) {
	return s.store.GetByID(ctx, boardID)
}

func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	return s.store.DeleteAll(ctx)
}

// AddPost appends post to the board. b must come from Access.
func (s *Service) AddPost(ctx context.Context, b Board, post Post) error {
	if _, err := postID(post); err != nil {
		return err
	}
	body, ok := post["post"]
	if !ok {
		return fmt.Errorf("%w: post body is required", ErrInvalidInput)
	}

	normalized, err := normalizeBody(b.SocialApp, body)
	if err != nil {
		return err
	}
	post["post"] = normalized

	return s.store.AppendPost(ctx, b.ID, post, s.now())
}

// EditPost replaces the "post" field of the post named by edit["id"] with
// edit["post"]. b must come from Access.
func (s *Service) EditPost(ctx context.Context, b Board, edit Post) error {
	id, err := postID(edit)
	if err != nil {
		return err
	}
	body, ok := edit["post"]
	if !ok {
		return fmt.Errorf("%w: post body is required", ErrInvalidInput)
	}

	normalized, err := normalizeBody(b.SocialApp, body)
	if err != nil {
		return err
	}

	return s.store.ReplacePostBody(ctx, b.ID, id, normalized, s.now())
}

// DeletePost removes every post whose id matches ref["id"]. b must come from Access.
func (s *Service) DeletePost(ctx context.Context, b Board, ref Post) error {
	id, err := postID(ref)
	if err != nil {
		return err
	}
	return s.store.RemovePost(ctx, b.ID, id, s.now())
}

func postID(p Post) (string, error) {
	raw, ok := p["id"]
	if !ok {
		return "", fmt.Errorf("%w: post id is required", ErrInvalidInput)
	}
	id, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: post id must be a string", ErrInvalidInput)
	}
	if id == "" {
		return "", fmt.Errorf("%w: post id is required", ErrInvalidInput)
	}
	return id, nil
}

func normalizeBody(socialApp string, body any) (any, error) {
	markup, ok := body.(string)
	if !ok {
		return body, nil
	}

	normalized, err := embed.Normalize(socialApp, markup)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	return normalized, nil
}

func validateCreate(input *CreateInput) error {
	input.BoardURL = strings.TrimSpace(input.BoardURL)
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.SocialApp = strings.TrimSpace(input.SocialApp)
	input.CTA = strings.TrimSpace(input.CTA)
	input.CTAURL = strings.TrimSpace(input.CTAURL)

	for _, post := range input.Posts {
		if _, ok := post.ID(); !ok {
			return fmt.Errorf("%w: every post needs an id", ErrInvalidInput)
		}
	}

	return validateBoard(Board{
		BoardURL:    input.BoardURL,
		Title:       input.Title,
		Description: input.Description,
		SocialApp:   input.SocialApp,
		CTA:         input.CTA,
		CTAURL:      input.CTAURL,
	})
}

func validateBoard(b Board) error {
	required := []struct {
		name  string
		value string
	}{
		{"board_url", b.BoardURL},
		{"title", b.Title},
		{"social_app", b.SocialApp},
		{"cta", b.CTA},
		{"cta_url", b.CTAURL},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, field.name)
		}
	}

	parsed, err := url.ParseRequestURI(b.CTAURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%w: cta_url must be a valid http or https link", ErrInvalidInput)
	}

	return nil
}
