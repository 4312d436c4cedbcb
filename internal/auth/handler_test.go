package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"postfolio/internal/store/memory"
	"postfolio/internal/user"
)

func newAuthHandler(t *testing.T) (*Handler, *TokenService) {
	t.Helper()
	users := user.NewService(memory.New().Users()).WithHashCost(bcrypt.MinCost)
	tokens := newTokenService(t)
	return NewHandler(users, tokens), tokens
}

func post(handler http.HandlerFunc, contentType, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRegisterThenLogin_SubjectIsUserID(t *testing.T) {
	h, tokens := newAuthHandler(t)

	rec := post(h.Register, "application/json", `{"username":"ana","email":"ana@example.com","password":"pw-123"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pw-123")
	assert.NotContains(t, rec.Body.String(), "password")

	var registered struct {
		Message string    `json:"message"`
		User    user.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	assert.Equal(t, "User added successfully", registered.Message)

	rec = post(h.Login, "application/json", `{"email":"ana@example.com","password":"pw-123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var login struct {
		Message string    `json:"message"`
		Token   TokenPair `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, "Login successful", login.Message)
	assert.Equal(t, "Bearer", login.Token.TokenType)

	subject, err := tokens.Validate(login.Token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, subject)
}

func TestRegister_Duplicate(t *testing.T) {
	h, _ := newAuthHandler(t)
	body := `{"username":"ana","email":"ana@example.com","password":"pw"}`

	require.Equal(t, http.StatusCreated, post(h.Register, "application/json", body, nil).Code)
	assert.Equal(t, http.StatusConflict, post(h.Register, "application/json", body, nil).Code)
	assert.Equal(t, http.StatusBadRequest, post(h.Register, "application/json", `{"email":"x"}`, nil).Code)
}

func TestLogin_WrongPasswordIssuesNoToken(t *testing.T) {
	h, _ := newAuthHandler(t)
	require.Equal(t, http.StatusCreated, post(h.Register, "application/json", `{"username":"ana","email":"ana@example.com","password":"pw"}`, nil).Code)

	rec := post(h.Login, "application/json", `{"email":"ana@example.com","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Incorrect email or password."}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "access_token")
}

func TestLogin_PasswordForm(t *testing.T) {
	h, _ := newAuthHandler(t)
	require.Equal(t, http.StatusCreated, post(h.Register, "application/json", `{"username":"ana","email":"ana@example.com","password":"pw"}`, nil).Code)

	form := url.Values{"grant_type": {"password"}, "username": {"ana@example.com"}, "password": {"pw"}}
	rec := post(h.Login, "application/x-www-form-urlencoded", form.Encode(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "refresh_token")
}

func TestRefreshHandler(t *testing.T) {
	h, tokens := newAuthHandler(t)
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }

	refresh, err := tokens.IssueRefresh("user-1")
	require.NoError(t, err)

	rec := post(h.Refresh, "", "", map[string]string{RefreshTokenHeader: refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Bearer", body["token_type"])
	subject, err := tokens.Validate(body["access_token"])
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)

	tokens.now = func() time.Time { return issued.Add(48 * time.Hour) }
	rec = post(h.Refresh, "", "", map[string]string{RefreshTokenHeader: refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Refresh token expired"}`, rec.Body.String())

	rec = post(h.Refresh, "", "", map[string]string{RefreshTokenHeader: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid refresh token"}`, rec.Body.String())

	rec = post(h.Refresh, "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRateLimiter(t *testing.T) {
	limiter := NewLoginRateLimiter(2, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	blocked := hit("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2").Code)

	now = now.Add(61 * time.Second)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
}

func TestLoginRateLimiter_WindowSlidesWithEachAttempt(t *testing.T) {
	limiter := NewLoginRateLimiter(2, time.Minute)
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	allowed, _ := limiter.allow("10.0.0.1", start)
	require.True(t, allowed)
	allowed, _ = limiter.allow("10.0.0.1", start.Add(40*time.Second))
	require.True(t, allowed)

	// Only the first attempt has left the window.
	allowed, _ = limiter.allow("10.0.0.1", start.Add(61*time.Second))
	assert.True(t, allowed)
	allowed, retryAfter := limiter.allow("10.0.0.1", start.Add(62*time.Second))
	assert.False(t, allowed)
	assert.Equal(t, 38*time.Second, retryAfter)
}
