package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"postfolio/internal/common"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

// Store is the persistence contract for user documents.
type Store interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Save(ctx context.Context, u User) (User, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
}

type Service struct {
	store    Store
	now      func() time.Time
	hashCost int
}

func NewService(store Store) *Service {
	return &Service{
		store:    store,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

// WithHashCost lowers the bcrypt cost, used by tests.
func (s *Service) WithHashCost(cost int) *Service {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.hashCost = cost
	}
	return s
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)

	if input.Username == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if !validEmail(input.Email) {
		return User{}, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if input.Password == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	if _, err := s.store.GetByEmail(ctx, input.Email); err == nil {
		return User{}, common.ErrConflict
	} else if !errors.Is(err, common.ErrNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	return s.store.Create(ctx, User{
		ID:           id.String(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hash),
		Boards:       []string{},
		CreatedAt:    s.now().UTC(),
	})
}

// Authenticate checks an email/password pair. Unknown email and wrong
// password both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, current User, p Patch) (User, error) {
	if p.Username != nil {
		trimmed := strings.TrimSpace(*p.Username)
		if trimmed == "" {
			return User{}, fmt.Errorf("%w: username is invalid", ErrInvalidInput)
		}
		p.Username = &trimmed
	}
	if p.Email != nil {
		normalized := normalizeEmail(*p.Email)
		if !validEmail(normalized) {
			return User{}, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
		}
		p.Email = &normalized
	}

	return s.store.Save(ctx, Apply(current, p, s.now()))
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	return s.store.DeleteAll(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
