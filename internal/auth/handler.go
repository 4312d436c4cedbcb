package auth

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"postfolio/internal/common"
	"postfolio/internal/httpx"
	"postfolio/internal/user"
)

const RefreshTokenHeader = "X-Refresh-Token"

type Handler struct {
	users  *user.Service
	tokens *TokenService
}

func NewHandler(users *user.Service, tokens *TokenService) *Handler {
	return &Handler{users: users, tokens: tokens}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body user.RegisterInput
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.users.Register(r.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidInput):
			httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, common.ErrConflict):
			httpx.WriteMessage(w, http.StatusConflict, "User with this email already exists")
		default:
			sentry.CaptureException(err)
			httpx.WriteMessage(w, http.StatusInternalServerError, "failed to register user")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "User added successfully",
		"user":    created,
	})
}

// Login accepts a JSON body or an OAuth2 password form where username
// carries the email.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeLogin(w, r)
	if !ok {
		return
	}

	u, err := h.users.Authenticate(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			httpx.WriteMessage(w, http.StatusUnauthorized, "Incorrect email or password.")
			return
		}
		sentry.CaptureException(err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to login")
		return
	}

	pair, err := h.tokens.IssuePair(u.ID)
	if err != nil {
		sentry.CaptureException(err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to login")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   pair,
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := strings.TrimSpace(r.Header.Get(RefreshTokenHeader))
	if refreshToken == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	access, err := h.tokens.Refresh(refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrRefreshExpired):
			httpx.WriteMessage(w, http.StatusUnauthorized, "Refresh token expired")
		case errors.Is(err, ErrInvalidToken):
			httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid refresh token")
		default:
			sentry.CaptureException(err)
			httpx.WriteMessage(w, http.StatusInternalServerError, "failed to refresh token")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"access_token": access,
		"token_type":   tokenTypeBearer,
	})
}

func decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		r.Body = http.MaxBytesReader(w, r.Body, httpx.MaxJSONBodyBytes)
		if err := r.ParseForm(); err != nil {
			httpx.WriteMessage(w, http.StatusBadRequest, "invalid form body")
			return loginRequest{}, false
		}
		return loginRequest{
			Email:    r.PostForm.Get("username"),
			Password: r.PostForm.Get("password"),
		}, true
	}

	var body loginRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return loginRequest{}, false
	}
	return body, true
}
