package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteMessage(rec, http.StatusNotFound, "Board does not exist")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"Board does not exist"}`, rec.Body.String())
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Title string `json:"title"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"a","extra":1}`))
	err := DecodeJSON(httptest.NewRecorder(), req, &dst)
	require.ErrorIs(t, err, ErrInvalidJSON)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"a"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &dst))
	assert.Equal(t, "a", dst.Title)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", " 10.0.0.1 , 10.0.0.2")
	assert.Equal(t, "10.0.0.2", ClientIP(req))

	// A spoofed left-most entry does not change the result.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.2")
	assert.Equal(t, "10.0.0.2", ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1:1234", ClientIP(req))
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := CORS([]string{"http://localhost:5500"}, next)

	req := httptest.NewRequest(http.MethodOptions, "/boards", nil)
	req.Header.Set("Origin", "http://localhost:5500")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5500", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/boards", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	wildcard := CORS([]string{"*"}, next)
	req = httptest.NewRequest(http.MethodGet, "/boards", nil)
	req.Header.Set("Origin", "http://any.example")
	rec = httptest.NewRecorder()
	wildcard.ServeHTTP(rec, req)
	assert.Equal(t, "http://any.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}
