// internal/board/board.go
//
// Game-type dispatch for board logic.
// Responsibilities:
//   - Enumerate the closed set of game types a session may carry.
//   - Define the Board variant (one strongly-typed representation per game type).
//   - Define Rules, the capability set every game type implements
//     (initial board, move normalization, legality, application, terminal check).
//   - Define Opponent, implemented only by game types playable single-player.
//
// Notes:
//   - Only tic-tac-toe is playable. Chess and connect4 are accepted by the data
//     model but their Rules reject every move until implemented.
//   - Everything in this package is pure: no I/O, no shared state.
package board

import (
	"encoding/json"
	"errors"
	"fmt"
)

// GameType selects which Rules govern a session.
type GameType string

const (
	TicTacToe GameType = "tic-tac-toe"
	Chess     GameType = "chess"
	Connect4  GameType = "connect4"
)

// Valid reports whether t is one of the known game types.
func (t GameType) Valid() bool {
	switch t {
	case TicTacToe, Chess, Connect4:
		return true
	}
	return false
}

// Symbol is the mark a participant places on the board.
type Symbol string

const (
	Empty Symbol = ""
	X     Symbol = "X"
	O     Symbol = "O"
)

// NoPosition is returned by an Opponent when the board has no free cell.
const NoPosition = -1

// ErrUnknownGameType is returned by For/Decode for a type outside the closed set.
var ErrUnknownGameType = errors.New("unknown game type")

// ErrIllegal is returned by Rules.Apply when the move fails IsLegal.
var ErrIllegal = errors.New("illegal move")

// Board is the game-specific state of a session. The concrete type is fixed
// by the session's GameType: *Grid for tic-tac-toe, Unplayable otherwise.
type Board interface {
	Type() GameType
	Clone() Board
	json.Marshaler
}

// Outcome is the result of a terminal check.
type Outcome struct {
	Kind   OutcomeKind
	Line   []int  // winning cell indices when Kind == Win
	Symbol Symbol // winning symbol when Kind == Win
}

// OutcomeKind enumerates terminal-check results.
type OutcomeKind int

const (
	None OutcomeKind = iota
	Win
	Draw
)

// Rules is the per-game-type capability set.
type Rules interface {
	Type() GameType
	Initial() Board
	// Index normalizes an inbound move to a flat position; ok is false if
	// the move cannot be expressed on this game's board.
	Index(m Move) (pos int, ok bool)
	IsLegal(b Board, pos int) bool
	// Apply returns a new board with s placed at pos; b is not modified.
	Apply(b Board, pos int, s Symbol) (Board, error)
	Terminal(b Board) Outcome
}

// Opponent selects the scripted participant's reply.
type Opponent interface {
	ChooseMove(b Board, opponent, human Symbol) int
}

// Seat is the symbol/color pair handed to a roster slot.
type Seat struct {
	Symbol Symbol
	Color  string
}

var registry = map[GameType]Rules{
	TicTacToe: ticTacToe{},
	Chess:     pendingRules{game: Chess},
	Connect4:  pendingRules{game: Connect4},
}

// For returns the Rules for t.
func For(t GameType) (Rules, error) {
	r, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGameType, t)
	}
	return r, nil
}

// OpponentFor returns the scripted opponent for t, if t supports single-player.
func OpponentFor(t GameType) (Opponent, bool) {
	r, ok := registry[t]
	if !ok {
		return nil, false
	}
	o, ok := r.(Opponent)
	return o, ok
}

// Seats returns the seat for slot 0 and slot 1. Slot 0 always gets the
// "first" seat.
func Seats(t GameType) [2]Seat {
	if t == Chess {
		return [2]Seat{{Color: "white"}, {Color: "black"}}
	}
	return [2]Seat{{Symbol: X}, {Symbol: O}}
}

// Decode rebuilds a Board from its JSON form. A null or empty payload decodes
// to a nil Board (not yet initialized).
func Decode(t GameType, raw json.RawMessage) (Board, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch t {
	case TicTacToe:
		var g Grid
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("decode %s board: %w", t, err)
		}
		return &g, nil
	case Chess, Connect4:
		return Unplayable{Game: t}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownGameType, t)
}

// pendingRules is the extension seam for game types without move logic.
type pendingRules struct{ game GameType }

// Unplayable is the board of a game type with no move logic yet.
type Unplayable struct{ Game GameType }

func (u Unplayable) Type() GameType { return u.Game }
func (u Unplayable) Clone() Board { return u }
func (u Unplayable) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func (p pendingRules) Type() GameType { return p.game }
func (p pendingRules) Initial() Board { return Unplayable{Game: p.game} }
func (p pendingRules) Index(Move) (int, bool) { return 0, false }
func (p pendingRules) IsLegal(Board, int) bool { return false }
func (p pendingRules) Terminal(Board) Outcome { return Outcome{Kind: None} }
func (p pendingRules) Apply(b Board, _ int, _ Symbol) (Board, error) {
	return b, fmt.Errorf("%w: %s moves are not implemented", ErrIllegal, p.game)
}
