package user

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"postfolio/internal/common"
	"postfolio/internal/httpx"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	current, ok := FromContext(r.Context())
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "User returned successfully",
		"user":    current,
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	current, ok := FromContext(r.Context())
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	var body Patch
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.service.Update(r.Context(), current, body)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, common.ErrConflict):
			httpx.WriteMessage(w, http.StatusConflict, "Email is already in use")
		case errors.Is(err, common.ErrNotFound):
			httpx.WriteMessage(w, http.StatusNotFound, "User not found")
		default:
			sentry.CaptureException(err)
			httpx.WriteMessage(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully.",
		"user":    updated,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	current, ok := FromContext(r.Context())
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	if err := h.service.Delete(r.Context(), current.ID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			httpx.WriteMessage(w, http.StatusNotFound, "User not found")
			return
		}
		sentry.CaptureException(err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "User deleted successfully")
}
