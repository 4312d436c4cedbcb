package maintenance

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"postfolio/internal/httpx"
	"postfolio/internal/observability"
)

type DanglingPruner interface {
	PruneDanglingBoards(ctx context.Context) (int64, error)
}

type OrphanRemover interface {
	DeleteOrphans(ctx context.Context) (int64, error)
}

type BulkDeleter interface {
	DeleteAll(ctx context.Context) (int64, error)
}

// Handler serves the operator endpoints. All of them answer 404 unless a
// maintenance secret is configured, and require it as a bearer token.
type Handler struct {
	pruner  DanglingPruner
	orphans OrphanRemover
	users   BulkDeleter
	boards  BulkDeleter
	logger  *observability.Logger
	secret  string
}

func NewHandler(pruner DanglingPruner, orphans OrphanRemover, users, boards BulkDeleter, logger *observability.Logger, secret string) *Handler {
	return &Handler{
		pruner:  pruner,
		orphans: orphans,
		users:   users,
		boards:  boards,
		logger:  logger,
		secret:  strings.TrimSpace(secret),
	}
}

type CleanupResult struct {
	DeletedOrphanBoards int64 `json:"deleted_orphan_boards"`
	PrunedUsers         int64 `json:"pruned_users"`
}

// Cleanup deletes boards whose owner is gone, then drops board ids that no
// longer resolve from every user's list.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r) {
		return
	}

	var (
		result CleanupResult
		err    error
	)
	result.DeletedOrphanBoards, err = h.orphans.DeleteOrphans(r.Context())
	if err == nil {
		result.PrunedUsers, err = h.pruner.PruneDanglingBoards(r.Context())
	}
	if err != nil {
		h.logger.Error("board_cleanup_failed", map[string]any{"error": err})
		httpx.WriteMessage(w, http.StatusInternalServerError, "cleanup failed")
		return
	}

	h.logger.Info("board_cleanup_completed", map[string]any{
		"deleted_orphan_boards": result.DeletedOrphanBoards,
		"pruned_users":          result.PrunedUsers,
	})

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func (h *Handler) DeleteUsers(w http.ResponseWriter, r *http.Request) {
	h.deleteAll(w, r, h.users, "users", "All users have been deleted successfully.")
}

func (h *Handler) DeleteBoards(w http.ResponseWriter, r *http.Request) {
	h.deleteAll(w, r, h.boards, "boards", "All boards have been deleted successfully.")
}

func (h *Handler) deleteAll(w http.ResponseWriter, r *http.Request, target BulkDeleter, kind, message string) {
	if !h.guard(w, r) {
		return
	}

	deleted, err := target.DeleteAll(r.Context())
	if err != nil {
		h.logger.Error("bulk_delete_failed", map[string]any{"kind": kind, "error": err})
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to delete "+kind)
		return
	}

	h.logger.Warn("bulk_delete_completed", map[string]any{"kind": kind, "deleted": deleted})
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": message,
		"deleted": deleted,
	})
}

func (h *Handler) guard(w http.ResponseWriter, r *http.Request) bool {
	if h.secret == "" {
		httpx.WriteMessage(w, http.StatusNotFound, "Not found")
		return false
	}

	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") ||
		subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.secret)) != 1 {
		httpx.WriteMessage(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	return true
}
