package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"postfolio/internal/common"
	"postfolio/internal/db"
)

const selectColumns = `id, username, email, password_hash, is_verified, board_ids, created_at, updated_at`

type Repository struct {
	db db.DBTX
}

func NewRepository(database db.DBTX) *Repository {
	return &Repository{db: database}
}

func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	boardIDs, err := encodeBoardIDs(u.Boards)
	if err != nil {
		return User{}, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, is_verified, board_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.IsVerified, boardIDs, u.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, common.ErrConflict
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return User{}, wrapLookup("query user by id", err)
	}
	return u, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	u, err := scanUser(row)
	if err != nil {
		return User{}, wrapLookup("query user by email", err)
	}
	return u, nil
}

// Save writes the profile fields of u. The board list is owned by board
// creation and is never rewritten here.
func (r *Repository) Save(ctx context.Context, u User) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET username = $2, email = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+selectColumns,
		u.ID, u.Username, u.Email, u.UpdatedAt)
	saved, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, common.ErrConflict
		}
		return User{}, wrapLookup("update user", err)
	}
	return saved, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}

	return nil
}

func (r *Repository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users`)
	if err != nil {
		return 0, fmt.Errorf("delete users: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}

// LinkBoard appends boardID to the owner's board list in a single statement.
func (r *Repository) LinkBoard(ctx context.Context, userID, boardID string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET board_ids = board_ids || jsonb_build_array($2::text), updated_at = $3
		WHERE id = $1
	`, userID, boardID, now.UTC())
	if err != nil {
		return fmt.Errorf("link board to user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}

	return nil
}

// PruneDanglingBoards removes board ids that no longer match a board row.
func (r *Repository) PruneDanglingBoards(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users u
		SET board_ids = COALESCE((
			SELECT jsonb_agg(e.value ORDER BY e.ord)
			FROM jsonb_array_elements_text(u.board_ids) WITH ORDINALITY AS e(value, ord)
			WHERE EXISTS (SELECT 1 FROM boards b WHERE b.id = e.value)
		), '[]'::jsonb)
		WHERE EXISTS (
			SELECT 1
			FROM jsonb_array_elements_text(u.board_ids) AS d(value)
			WHERE NOT EXISTS (SELECT 1 FROM boards b WHERE b.id = d.value)
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("prune dangling board ids: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		u         User
		boardIDs  []byte
		updatedAt sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsVerified, &boardIDs, &u.CreatedAt, &updatedAt); err != nil {
		return User{}, err
	}

	u.Boards = []string{}
	if len(boardIDs) > 0 {
		if err := json.Unmarshal(boardIDs, &u.Boards); err != nil {
			return User{}, fmt.Errorf("decode board ids: %w", err)
		}
	}
	if updatedAt.Valid {
		value := updatedAt.Time.UTC()
		u.UpdatedAt = &value
	}
	u.CreatedAt = u.CreatedAt.UTC()

	return u, nil
}

func encodeBoardIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode board ids: %w", err)
	}
	return string(encoded), nil
}

func wrapLookup(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
