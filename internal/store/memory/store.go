// Package memory is an in-process store for users and boards. It backs the
// "memory" store driver and the service tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"postfolio/internal/board"
	"postfolio/internal/common"
	"postfolio/internal/user"
)

type Store struct {
	mu     sync.RWMutex
	users  map[string]user.User
	emails map[string]string
	boards map[string]board.Board
}

func New() *Store {
	return &Store{
		users:  make(map[string]user.User),
		emails: make(map[string]string),
		boards: make(map[string]board.Board),
	}
}

// Users returns the store as a user.Store.
func (s *Store) Users() *Users { return &Users{s: s} }

// Boards returns the store as a board.Store.
func (s *Store) Boards() *Boards { return &Boards{s: s} }

func (s *Store) Ping(context.Context) error { return nil }

// PruneDanglingBoards drops board ids that no longer match a stored board.
func (s *Store) PruneDanglingBoards(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for id, u := range s.users {
		kept := slices.DeleteFunc(slices.Clone(u.Boards), func(boardID string) bool {
			_, ok := s.boards[boardID]
			return !ok
		})
		if len(kept) != len(u.Boards) {
			u.Boards = kept
			s.users[id] = u
			changed++
		}
	}
	return changed, nil
}

// DeleteOrphans removes boards whose owner no longer exists.
func (s *Store) DeleteOrphans(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, b := range s.boards {
		if _, ok := s.users[b.UserID]; !ok {
			delete(s.boards, id)
			deleted++
		}
	}
	return deleted, nil
}

type Users struct {
	s *Store
}

func (u *Users) Create(_ context.Context, created user.User) (user.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	key := emailKey(created.Email)
	if _, taken := u.s.emails[key]; taken {
		return user.User{}, common.ErrConflict
	}
	if _, taken := u.s.users[created.ID]; taken {
		return user.User{}, common.ErrConflict
	}

	if created.Boards == nil {
		created.Boards = []string{}
	}
	u.s.users[created.ID] = cloneUser(created)
	u.s.emails[key] = created.ID
	return cloneUser(created), nil
}

func (u *Users) GetByID(_ context.Context, id string) (user.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	found, ok := u.s.users[id]
	if !ok {
		return user.User{}, common.ErrNotFound
	}
	return cloneUser(found), nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (user.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	id, ok := u.s.emails[emailKey(email)]
	if !ok {
		return user.User{}, common.ErrNotFound
	}
	return cloneUser(u.s.users[id]), nil
}

// Save writes the profile fields. The stored board list is kept.
func (u *Users) Save(_ context.Context, updated user.User) (user.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	existing, ok := u.s.users[updated.ID]
	if !ok {
		return user.User{}, common.ErrNotFound
	}

	oldKey, newKey := emailKey(existing.Email), emailKey(updated.Email)
	if oldKey != newKey {
		if _, taken := u.s.emails[newKey]; taken {
			return user.User{}, common.ErrConflict
		}
		delete(u.s.emails, oldKey)
		u.s.emails[newKey] = existing.ID
	}

	existing.Username = updated.Username
	existing.Email = updated.Email
	existing.UpdatedAt = updated.UpdatedAt
	u.s.users[existing.ID] = existing
	return cloneUser(existing), nil
}

func (u *Users) Delete(_ context.Context, id string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	existing, ok := u.s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	delete(u.s.emails, emailKey(existing.Email))
	delete(u.s.users, id)
	return nil
}

func (u *Users) DeleteAll(context.Context) (int64, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	deleted := int64(len(u.s.users))
	clear(u.s.users)
	clear(u.s.emails)
	return deleted, nil
}

type Boards struct {
	s *Store
}

// Create stores b and links it to its owner under one lock.
func (b *Boards) Create(_ context.Context, created board.Board) (board.Board, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	owner, ok := b.s.users[created.UserID]
	if !ok {
		return board.Board{}, common.ErrNotFound
	}
	if _, taken := b.s.boards[created.ID]; taken {
		return board.Board{}, common.ErrConflict
	}

	b.s.boards[created.ID] = cloneBoard(created)
	owner.Boards = append(slices.Clone(owner.Boards), created.ID)
	stamp := created.CreatedAt
	owner.UpdatedAt = &stamp
	b.s.users[owner.ID] = owner
	return cloneBoard(created), nil
}

func (b *Boards) GetByID(_ context.Context, id string) (board.Board, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	found, ok := b.s.boards[id]
	if !ok {
		return board.Board{}, common.ErrNotFound
	}
	return cloneBoard(found), nil
}

func (b *Boards) ListByIDs(_ context.Context, ids []string) ([]board.Board, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	boards := make([]board.Board, 0, len(ids))
	for _, id := range ids {
		if found, ok := b.s.boards[id]; ok {
			boards = append(boards, cloneBoard(found))
		}
	}
	return boards, nil
}

// Save writes the metadata fields. Theme and posts are kept.
func (b *Boards) Save(_ context.Context, updated board.Board) (board.Board, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	existing, ok := b.s.boards[updated.ID]
	if !ok {
		return board.Board{}, common.ErrNotFound
	}

	existing.BoardURL = updated.BoardURL
	existing.Title = updated.Title
	existing.Description = updated.Description
	existing.SocialApp = updated.SocialApp
	existing.CTA = updated.CTA
	existing.CTAURL = updated.CTAURL
	existing.IsPublished = updated.IsPublished
	existing.UpdatedAt = updated.UpdatedAt
	b.s.boards[existing.ID] = existing
	return cloneBoard(existing), nil
}

func (b *Boards) SetTheme(_ context.Context, id string, theme map[string]any, now time.Time) (board.Board, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	existing, ok := b.s.boards[id]
	if !ok {
		return board.Board{}, common.ErrNotFound
	}

	existing.Theme = maps.Clone(theme)
	if existing.Theme == nil {
		existing.Theme = map[string]any{}
	}
	stamp := now.UTC()
	existing.UpdatedAt = &stamp
	b.s.boards[id] = existing
	return cloneBoard(existing), nil
}

func (b *Boards) Delete(_ context.Context, id string) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	if _, ok := b.s.boards[id]; !ok {
		return common.ErrNotFound
	}
	delete(b.s.boards, id)
	return nil
}

func (b *Boards) DeleteAll(context.Context) (int64, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	deleted := int64(len(b.s.boards))
	clear(b.s.boards)
	return deleted, nil
}

func (b *Boards) AppendPost(_ context.Context, boardID string, post board.Post, now time.Time) error {
	return b.mutatePosts(boardID, now, func(posts []board.Post) ([]board.Post, error) {
		return append(posts, maps.Clone(post)), nil
	})
}

func (b *Boards) ReplacePostBody(_ context.Context, boardID, postID string, body any, now time.Time) error {
	return b.mutatePosts(boardID, now, func(posts []board.Post) ([]board.Post, error) {
		matched := false
		for i, post := range posts {
			if id, ok := post.ID(); ok && id == postID {
				replaced := maps.Clone(post)
				replaced["post"] = body
				posts[i] = replaced
				matched = true
			}
		}
		if !matched {
			return nil, board.ErrPostNotFound
		}
		return posts, nil
	})
}

func (b *Boards) RemovePost(_ context.Context, boardID, postID string, now time.Time) error {
	return b.mutatePosts(boardID, now, func(posts []board.Post) ([]board.Post, error) {
		return slices.DeleteFunc(posts, func(post board.Post) bool {
			id, ok := post.ID()
			return ok && id == postID
		}), nil
	})
}

func (b *Boards) mutatePosts(boardID string, now time.Time, fn func([]board.Post) ([]board.Post, error)) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	existing, ok := b.s.boards[boardID]
	if !ok {
		return common.ErrNotFound
	}

	posts, err := fn(slices.Clone(existing.Posts))
	if err != nil {
		return err
	}

	existing.Posts = posts
	stamp := now.UTC()
	existing.UpdatedAt = &stamp
	b.s.boards[boardID] = existing
	return nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneUser(u user.User) user.User {
	u.Boards = slices.Clone(u.Boards)
	if u.Boards == nil {
		u.Boards = []string{}
	}
	return u
}

func cloneBoard(b board.Board) board.Board {
	b.Theme = maps.Clone(b.Theme)
	if b.Theme == nil {
		b.Theme = map[string]any{}
	}
	posts := make([]board.Post, 0, len(b.Posts))
	for _, post := range b.Posts {
		posts = append(posts, maps.Clone(post))
	}
	b.Posts = posts
	return b
}
