// Package live serves the websocket endpoints that add, edit and delete posts
// on a board. Every message is authorized against fresh store data before the
// mutation is applied.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/getsentry/sentry-go"
	"golang.org/x/net/websocket"

	"postfolio/internal/board"
	"postfolio/internal/common"
	"postfolio/internal/observability"
	"postfolio/internal/user"
)

const (
	maxDecodeErrors = 5
	maxFrameBytes   = 1 << 20
)

// Op is the mutation a channel applies to each received message.
type Op string

const (
	OpAdd    Op = "add"
	OpEdit   Op = "edit"
	OpDelete Op = "delete"
)

type Authenticator interface {
	AuthenticateConnection(r *http.Request) (user.User, error)
}

type UserFinder interface {
	Get(ctx context.Context, id string) (user.User, error)
}

// Frame is the status message written back to the client.
type Frame struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type Channel struct {
	auth   Authenticator
	users  UserFinder
	boards *board.Service
	logger *observability.Logger
}

func NewChannel(auth Authenticator, users UserFinder, boards *board.Service, logger *observability.Logger) *Channel {
	return &Channel{auth: auth, users: users, boards: boards, logger: logger}
}

// Handler returns the endpoint for op. The board id comes from the
// {board_id} path value and the caller from the token query parameter.
func (c *Channel) Handler(op Op) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		boardID := r.PathValue("board_id")

		var caller user.User
		server := websocket.Server{
			Handshake: func(_ *websocket.Config, req *http.Request) error {
				authenticated, err := c.auth.AuthenticateConnection(req)
				if err != nil {
					c.logger.Warn("live_handshake_refused", map[string]any{
						"op":       string(op),
						"board_id": boardID,
						"status":   http.StatusForbidden,
						"error":    err,
					})
					return err
				}
				caller = authenticated
				return nil
			},
			Handler: func(conn *websocket.Conn) {
				c.serve(conn, op, boardID, caller.ID)
			},
		}
		server.ServeHTTP(w, r)
	})
}

func (c *Channel) serve(conn *websocket.Conn, op Op, boardID, callerID string) {
	defer func() {
		_ = conn.Close()
	}()
	conn.MaxPayloadBytes = maxFrameBytes
	ctx := conn.Request().Context()

	if _, ok := c.authorize(ctx, conn, callerID, boardID); !ok {
		return
	}

	decodeErrors := 0
	for {
		var raw []byte
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Info("live_connection_closed", map[string]any{
					"op":       string(op),
					"board_id": boardID,
					"error":    err,
				})
			}
			return
		}

		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
			decodeErrors++
			_ = send(conn, "Invalid message payload", http.StatusBadRequest)
			if decodeErrors >= maxDecodeErrors {
				return
			}
			continue
		}
		decodeErrors = 0

		b, ok := c.authorize(ctx, conn, callerID, boardID)
		if !ok {
			return
		}

		if !c.apply(ctx, conn, op, b, board.Post(payload)) {
			return
		}
	}
}

// authorize re-reads the caller and the board and applies the access policy.
// On failure the status frame is already sent and the channel must close.
func (c *Channel) authorize(ctx context.Context, conn *websocket.Conn, callerID, boardID string) (board.Board, bool) {
	caller, err := c.users.Get(ctx, callerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			_ = send(conn, "User not found", http.StatusNotFound)
		} else {
			c.fail(conn, "live_user_lookup_failed", err)
		}
		return board.Board{}, false
	}

	b, err := c.boards.Access(ctx, caller, boardID)
	switch {
	case err == nil:
		return b, true
	case errors.Is(err, common.ErrNotFound):
		_ = send(conn, "Board does not exist", http.StatusNotFound)
	case errors.Is(err, common.ErrForbidden):
		_ = send(conn, "User is not authorized to access this board", http.StatusForbidden)
	default:
		c.fail(conn, "live_board_lookup_failed", err)
	}
	return board.Board{}, false
}

// apply runs one mutation and reports whether the channel stays open.
func (c *Channel) apply(ctx context.Context, conn *websocket.Conn, op Op, b board.Board, msg board.Post) bool {
	var (
		err     error
		success string
	)
	switch op {
	case OpAdd:
		err = c.boards.AddPost(ctx, b, msg)
		success = "Post added successfully"
	case OpEdit:
		err = c.boards.EditPost(ctx, b, msg)
		success = "Post edited successfully"
	case OpDelete:
		err = c.boards.DeletePost(ctx, b, msg)
		success = "Post deleted successfully"
	default:
		_ = send(conn, "Unsupported operation", http.StatusBadRequest)
		return false
	}

	switch {
	case err == nil:
		return send(conn, success, http.StatusOK) == nil
	case errors.Is(err, board.ErrInvalidInput):
		return send(conn, err.Error(), http.StatusBadRequest) == nil
	case errors.Is(err, board.ErrPostNotFound):
		return send(conn, "Post does not exist", http.StatusNotFound) == nil
	case errors.Is(err, common.ErrNotFound):
		_ = send(conn, "Board does not exist", http.StatusNotFound)
		return false
	default:
		c.fail(conn, "live_apply_failed", err)
		return true
	}
}

func (c *Channel) fail(conn *websocket.Conn, event string, err error) {
	sentry.CaptureException(err)
	c.logger.Error(event, map[string]any{"error": err})
	_ = send(conn, "Internal server error", http.StatusInternalServerError)
}

func send(conn *websocket.Conn, message string, status int) error {
	return websocket.JSON.Send(conn, Frame{Message: message, Status: status})
}
