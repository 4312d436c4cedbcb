package board

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"postfolio/internal/common"
	"postfolio/internal/db"
	"postfolio/internal/user"
)

const selectColumns = `id, user_id, board_url, title, description, social_app, cta, cta_url, is_published, theme, posts, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(database *sql.DB) *Repository {
	return &Repository{db: database}
}

// Create inserts b and appends its id to the owner's board list in one
// transaction.
func (r *Repository) Create(ctx context.Context, b Board) (Board, error) {
	theme, err := encodeJSON(b.Theme, "{}")
	if err != nil {
		return Board{}, fmt.Errorf("encode theme: %w", err)
	}
	posts, err := encodeJSON(b.Posts, "[]")
	if err != nil {
		return Board{}, fmt.Errorf("encode posts: %w", err)
	}

	err = db.WithTx(ctx, r.db, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO boards (id, user_id, board_url, title, description, social_app, cta, cta_url, is_published, theme, posts, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11::jsonb, $12)
		`, b.ID, b.UserID, b.BoardURL, b.Title, b.Description, b.SocialApp, b.CTA, b.CTAURL, b.IsPublished, theme, posts, b.CreatedAt); err != nil {
			return fmt.Errorf("insert board: %w", err)
		}

		return user.NewRepository(tx).LinkBoard(ctx, b.UserID, b.ID, b.CreatedAt)
	})
	if err != nil {
		return Board{}, err
	}

	return b, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Board, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM boards WHERE id = $1`, id)
	b, err := scanBoard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Board{}, common.ErrNotFound
		}
		return Board{}, fmt.Errorf("query board: %w", err)
	}
	return b, nil
}

// ListByIDs returns the boards in the order of ids, skipping ids without a row.
func (r *Repository) ListByIDs(ctx context.Context, ids []string) ([]Board, error) {
	boards := make([]Board, 0, len(ids))
	if len(ids) == 0 {
		return boards, nil
	}

	encoded, err := encodeJSON(ids, "[]")
	if err != nil {
		return nil, fmt.Errorf("encode board ids: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.board_url, b.title, b.description, b.social_app, b.cta, b.cta_url, b.is_published, b.theme, b.posts, b.created_at, b.updated_at
		FROM jsonb_array_elements_text($1::jsonb) WITH ORDINALITY AS wanted(id, ord)
		JOIN boards b ON b.id = wanted.id
		ORDER BY wanted.ord
	`, encoded)
	if err != nil {
		return nil, fmt.Errorf("query boards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		boards = append(boards, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}

	return boards, nil
}

// Save writes the metadata columns of b. Theme and posts are untouched so
// concurrent live edits are not overwritten.
func (r *Repository) Save(ctx context.Context, b Board) (Board, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE boards
		SET board_url = $2, title = $3, description = $4, social_app = $5, cta = $6, cta_url = $7, is_published = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+selectColumns,
		b.ID, b.BoardURL, b.Title, b.Description, b.SocialApp, b.CTA, b.CTAURL, b.IsPublished, b.UpdatedAt)
	saved, err := scanBoard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Board{}, common.ErrNotFound
		}
		return Board{}, fmt.Errorf("update board: %w", err)
	}
	return saved, nil
}

func (r *Repository) SetTheme(ctx context.Context, id string, theme map[string]any, now time.Time) (Board, error) {
	encoded, err := encodeJSON(theme, "{}")
	if err != nil {
		return Board{}, fmt.Errorf("encode theme: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE boards
		SET theme = $2::jsonb, updated_at = $3
		WHERE id = $1
		RETURNING `+selectColumns,
		id, encoded, now.UTC())
	saved, err := scanBoard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Board{}, common.ErrNotFound
		}
		return Board{}, fmt.Errorf("update board theme: %w", err)
	}
	return saved, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	return requireAffected(res, common.ErrNotFound)
}

func (r *Repository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM boards`)
	if err != nil {
		return 0, fmt.Errorf("delete boards: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// DeleteOrphans removes boards whose owner no longer exists.
func (r *Repository) DeleteOrphans(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM boards b
		WHERE NOT EXISTS (SELECT 1 FROM users u WHERE u.id = b.user_id)
	`)
	if err != nil {
		return 0, fmt.Errorf("delete orphan boards: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (r *Repository) AppendPost(ctx context.Context, boardID string, post Post, now time.Time) error {
	encoded, err := encodeJSON(post, "{}")
	if err != nil {
		return fmt.Errorf("encode post: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE boards
		SET posts = posts || jsonb_build_array($2::jsonb), updated_at = $3
		WHERE id = $1
	`, boardID, encoded, now.UTC())
	if err != nil {
		return fmt.Errorf("append post: %w", err)
	}
	return requireAffected(res, common.ErrNotFound)
}

// ReplacePostBody sets the "post" field of every post whose id matches.
func (r *Repository) ReplacePostBody(ctx context.Context, boardID, postID string, body any, now time.Time) error {
	encoded, err := encodeJSON(body, "null")
	if err != nil {
		return fmt.Errorf("encode post body: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE boards
		SET posts = (
			SELECT COALESCE(jsonb_agg(
				CASE WHEN p.elem->>'id' = $2 THEN jsonb_set(p.elem, '{post}', $3::jsonb) ELSE p.elem END
				ORDER BY p.ord), '[]'::jsonb)
			FROM jsonb_array_elements(posts) WITH ORDINALITY AS p(elem, ord)
		), updated_at = $4
		WHERE id = $1 AND posts @> jsonb_build_array(jsonb_build_object('id', $2::text))
	`, boardID, postID, encoded, now.UTC())
	if err != nil {
		return fmt.Errorf("replace post body: %w", err)
	}
	return requireAffected(res, ErrPostNotFound)
}

func (r *Repository) RemovePost(ctx context.Context, boardID, postID string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE boards
		SET posts = (
			SELECT COALESCE(jsonb_agg(p.elem ORDER BY p.ord), '[]'::jsonb)
			FROM jsonb_array_elements(posts) WITH ORDINALITY AS p(elem, ord)
			WHERE p.elem->>'id' IS DISTINCT FROM $2
		), updated_at = $3
		WHERE id = $1
	`, boardID, postID, now.UTC())
	if err != nil {
		return fmt.Errorf("remove post: %w", err)
	}
	return requireAffected(res, common.ErrNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBoard(row rowScanner) (Board, error) {
	var (
		b         Board
		theme     []byte
		posts     []byte
		updatedAt sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.BoardURL, &b.Title, &b.Description, &b.SocialApp, &b.CTA, &b.CTAURL, &b.IsPublished, &theme, &posts, &b.CreatedAt, &updatedAt); err != nil {
		return Board{}, err
	}

	b.Theme = map[string]any{}
	if len(theme) > 0 {
		if err := json.Unmarshal(theme, &b.Theme); err != nil {
			return Board{}, fmt.Errorf("decode theme: %w", err)
		}
	}
	b.Posts = []Post{}
	if len(posts) > 0 {
		if err := json.Unmarshal(posts, &b.Posts); err != nil {
			return Board{}, fmt.Errorf("decode posts: %w", err)
		}
	}
	if updatedAt.Valid {
		value := updatedAt.Time.UTC()
		b.UpdatedAt = &value
	}
	b.CreatedAt = b.CreatedAt.UTC()

	return b, nil
}

func encodeJSON(value any, empty string) (string, error) {
	switch v := value.(type) {
	case nil:
		return empty, nil
	case map[string]any:
		if v == nil {
			return empty, nil
		}
	case []Post:
		if v == nil {
			return empty, nil
		}
	case []string:
		if v == nil {
			return empty, nil
		}
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func requireAffected(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return missing
	}
	return nil
}
