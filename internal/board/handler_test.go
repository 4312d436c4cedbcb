package board_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postfolio/internal/board"
	"postfolio/internal/user"
)

func serve(t *testing.T, handler http.HandlerFunc, pattern, method, target, body string, caller *user.User) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(method+" "+pattern, handler)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if caller != nil {
		req = req.WithContext(user.NewContext(req.Context(), *caller))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestHandler_CreateThenGet(t *testing.T) {
	f := newFixture(t)
	h := board.NewHandler(f.service)
	owner := f.addUser(t, "owner")

	rec := serve(t, h.Create, "/boards", http.MethodPost, "/boards",
		`{"board_url":"b","title":"T","social_app":"linkedin","cta":"Go","cta_url":"https://example.com"}`, &owner)
	require.Equal(t, http.StatusCreated, rec.Code)
	payload := decode(t, rec)
	assert.Equal(t, "Board created successfully", payload["message"])
	id := payload["board"].(map[string]any)["id"].(string)

	owner = f.reload(t, owner.ID)
	rec = serve(t, h.Get, "/boards/{id}", http.MethodGet, "/boards/"+id, "", &owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode(t, rec)["board"].(map[string]any)["id"])
}

func TestHandler_ErrorMapping(t *testing.T) {
	f := newFixture(t)
	h := board.NewHandler(f.service)
	owner := f.addUser(t, "owner")
	other := f.addUser(t, "other")
	created, err := f.service.Create(context.Background(), owner, validInput())
	require.NoError(t, err)

	rec := serve(t, h.Get, "/boards/{id}", http.MethodGet, "/boards/"+created.ID, "", &other)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "User is not authorized to access this board", decode(t, rec)["message"])

	rec = serve(t, h.Get, "/boards/{id}", http.MethodGet, "/boards/missing", "", &other)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Board does not exist", decode(t, rec)["message"])

	rec = serve(t, h.Create, "/boards", http.MethodPost, "/boards", `{"title":""}`, &owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h.Create, "/boards", http.MethodPost, "/boards", `{"unknown":1}`, &owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h.List, "/boards", http.MethodGet, "/boards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_UpdateThemeDelete(t *testing.T) {
	f := newFixture(t)
	h := board.NewHandler(f.service)
	owner := f.addUser(t, "owner")
	created, err := f.service.Create(context.Background(), owner, validInput())
	require.NoError(t, err)
	owner = f.reload(t, owner.ID)

	rec := serve(t, h.Update, "/boards/{id}", http.MethodPut, "/boards/"+created.ID, `{"is_published":true}`, &owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["board"].(map[string]any)["is_published"])

	rec = serve(t, h.SetTheme, "/boards/{id}/theme", http.MethodPut, "/boards/"+created.ID+"/theme", `{"theme":{"font":"serif"}}`, &owner)
	require.Equal(t, http.StatusOK, rec.Code)
	theme := decode(t, rec)["board"].(map[string]any)["theme"].(map[string]any)
	assert.Equal(t, "serif", theme["font"])

	rec = serve(t, h.List, "/boards", http.MethodGet, "/boards", "", &owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["boards"], 1)

	rec = serve(t, h.Delete, "/boards/{id}", http.MethodDelete, "/boards/"+created.ID, "", &owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Board deleted successfully", decode(t, rec)["message"])

	rec = serve(t, h.Portfolio, "/portfolio/{id}", http.MethodGet, "/portfolio/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_PortfolioIsPublic(t *testing.T) {
	f := newFixture(t)
	h := board.NewHandler(f.service)
	owner := f.addUser(t, "owner")
	created, err := f.service.Create(context.Background(), owner, validInput())
	require.NoError(t, err)

	rec := serve(t, h.Portfolio, "/portfolio/{id}", http.MethodGet, "/portfolio/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "My board", decode(t, rec)["board"].(map[string]any)["title"])
}
