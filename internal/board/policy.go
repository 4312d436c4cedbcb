package board

import "postfolio/internal/user"

// Authorize reports whether u may act on boardID: the id must be in the
// user's board list. It does not check that the board exists.
func Authorize(u user.User, boardID string) bool {
	return boardID != "" && u.HasBoard(boardID)
}
