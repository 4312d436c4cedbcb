package board

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"postfolio/internal/common"
	"postfolio/internal/httpx"
	"postfolio/internal/user"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := user.FromContext(r.Context())
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	boards, err := h.service.ListForUser(r.Context(), caller)
	if err != nil {
		sentry.CaptureException(err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to list boards")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Successful",
		"boards":  boards,
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := user.FromContext(r.Context())
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	var input CreateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), caller, input)
	if err != nil {
		h.writeError(w, err, "failed to create board")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Board created successfully",
		"board":   created,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := user.FromContext(r.Context())
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	b, err := h.service.Access(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "failed to load board")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Successful",
		"board":   b,
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := user.FromContext(r.Context())
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	var body Patch
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.service.Update(r.Context(), caller, r.PathValue("id"), body)
	if err != nil {
		h.writeError(w, err, "failed to update board")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Board updated successfully",
		"board":   updated,
	})
}

func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	caller, ok := user.FromContext(r.Context())
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	var body struct {
		Theme map[string]any `json:"theme"`
	}
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.service.SetTheme(r.Context(), caller, r.PathValue("id"), body.Theme)
	if err != nil {
		h.writeError(w, err, "failed to update theme")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Theme updated successfully",
		"board":   updated,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := user.FromContext(r.Context())
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	if err := h.service.Delete(r.Context(), caller, r.PathValue("id")); err != nil {
		h.writeError(w, err, "failed to delete board")
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "Board deleted successfully")
}

func (h *Handler) Portfolio(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Portfolio(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "failed to load portfolio")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Successful",
		"board":   b,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrNotFound):
		httpx.WriteMessage(w, http.StatusNotFound, "Board does not exist")
	case errors.Is(err, common.ErrForbidden):
		httpx.WriteMessage(w, http.StatusForbidden, "User is not authorized to access this board")
	default:
		sentry.CaptureException(err)
		httpx.WriteMessage(w, http.StatusInternalServerError, fallback)
	}
}
