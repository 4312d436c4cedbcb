package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	kindAccess  = "access"
	kindRefresh = "refresh"

	tokenTypeBearer = "Bearer"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrRefreshExpired = errors.New("refresh token expired")
)

// TokenConfig is the signing configuration handed to NewTokenService.
type TokenConfig struct {
	Secret     string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type claims struct {
	Kind string `json:"typ"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token secret is required")
	}

	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	s := &TokenService{
		secret:     []byte(cfg.Secret),
		method:     method,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	if cfg.AccessTTL > 0 {
		s.accessTTL = cfg.AccessTTL
	}
	if cfg.RefreshTTL > 0 {
		s.refreshTTL = cfg.RefreshTTL
	}
	return s, nil
}

func signingMethod(name string) (jwt.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", name)
	}
}

// Issue signs an access token for subject expiring after ttl.
func (s *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	return s.sign(subject, kindAccess, ttl)
}

func (s *TokenService) IssueAccess(subject string) (string, error) {
	return s.sign(subject, kindAccess, s.accessTTL)
}

func (s *TokenService) IssueRefresh(subject string) (string, error) {
	return s.sign(subject, kindRefresh, s.refreshTTL)
}

func (s *TokenService) IssuePair(subject string) (TokenPair, error) {
	access, err := s.IssueAccess(subject)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.IssueRefresh(subject)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
	}, nil
}

func (s *TokenService) sign(subject, kind string, ttl time.Duration) (string, error) {
	now := s.now().UTC()
	token := jwt.NewWithClaims(s.method, claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	encoded, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return encoded, nil
}

// Validate returns the subject of a live access token. Every failure is
// reported as ErrInvalidToken.
func (s *TokenService) Validate(tokenString string) (string, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, s.keyFunc,
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if c.Kind != kindAccess || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

// Refresh mints a new access token from a refresh token. The refresh token
// stays usable until it expires.
func (s *TokenService) Refresh(refreshToken string) (string, error) {
	var c claims
	_, err := jwt.ParseWithClaims(refreshToken, &c, s.keyFunc,
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", ErrInvalidToken
	}
	if c.Kind != kindRefresh || c.Subject == "" || c.ExpiresAt == nil {
		return "", ErrInvalidToken
	}
	if !s.now().Before(c.ExpiresAt.Time) {
		return "", ErrRefreshExpired
	}

	return s.IssueAccess(c.Subject)
}

func (s *TokenService) keyFunc(*jwt.Token) (any, error) {
	return s.secret, nil
}
