package game

import "errors"

// Caller-facing failures of a single transition. None of them leave a
// partially mutated session behind.
var (
	ErrInvalidGameType = errors.New("invalid game type")
	ErrRoomClosed      = errors.New("room closed")
	ErrRoomFull        = errors.New("room full")
	ErrNotAParticipant = errors.New("not a participant")
	ErrNotInProgress   = errors.New("game not in progress")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrIllegalMove     = errors.New("illegal move")
	ErrSessionNotFound = errors.New("session not found")
)
