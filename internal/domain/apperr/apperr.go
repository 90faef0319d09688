// Package apperr holds the caller-facing error taxonomy of the room service.
package apperr

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrRoomFull       = errors.New("room is full")
	ErrUsernameTaken  = errors.New("username is already taken in this room")
	ErrNotAdmin       = errors.New("only the room admin can do this")
	ErrCannotKickSelf = errors.New("admin cannot kick themselves")
	ErrNotFound       = errors.New("not found")
	ErrKicked         = errors.New("connection was kicked from the room")
	ErrRateLimited    = errors.New("too many messages")
	ErrNotInRoom      = errors.New("connection is not in a room")
)

// CodeInternal is the code of every error outside the taxonomy.
const CodeInternal = "internal"

// Code maps an error to the stable code sent to clients.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrUsernameTaken):
		return "username_taken"
	case errors.Is(err, ErrNotAdmin):
		return "not_admin"
	case errors.Is(err, ErrCannotKickSelf):
		return "cannot_kick_self"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrKicked):
		return "kicked"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	default:
		return CodeInternal
	}
}

// Message returns the client-safe text of err. Unknown errors are not leaked.
func Message(err error) string {
	if Code(err) == CodeInternal {
		return "internal error"
	}

	for _, known := range []error{
		ErrInvalidInput, ErrRoomFull, ErrUsernameTaken, ErrNotAdmin, ErrCannotKickSelf,
		ErrNotFound, ErrKicked, ErrRateLimited, ErrNotInRoom,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	return "internal error"
}
