// internal/game/types.go
//
// Core type definitions for the match session state machine.
// Defines:
//   - Participant: an account reference or the scripted-opponent marker.
//   - Slot: one seat in the roster (participant, symbol/color, ready flag).
//   - MoveRecord: one accepted move in the append-only log.
//   - Session: the aggregate root for a single match.

package game

import (
	"time"

	"github.com/robalobadob/arena/internal/board"
)

// AccountID is the opaque account identifier handed in by the identity layer.
// The engine only ever compares it for equality.
type AccountID string

// Mode is fixed at creation.
type Mode string

const (
	ModeMulti  Mode = "multi"
	ModeSingle Mode = "single"
)

// Status only moves forward: waiting → in-progress → completed.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Result is empty until the session completes.
type Result string

const (
	ResultNone      Result = ""
	ResultWin       Result = "win"
	ResultDraw      Result = "draw"
	ResultAbandoned Result = "abandoned"
)

// Participant is either a real account or the scripted opponent, never both.
type Participant struct {
	Account  AccountID `json:"account,omitempty"`
	Scripted bool      `json:"scripted,omitempty"`
}

// Human wraps an account reference.
func Human(id AccountID) Participant { return Participant{Account: id} }

// ScriptedOpponent is the marker for the single-player opponent.
var ScriptedOpponent = Participant{Scripted: true}

// Slot is one roster seat.
type Slot struct {
	Participant
	Symbol board.Symbol `json:"symbol,omitempty"`
	Color  string       `json:"color,omitempty"`
	Ready  bool         `json:"ready"`
}

// MoveRecord is one entry of the move log.
type MoveRecord struct {
	Actor    Participant `json:"actor"`
	Position int         `json:"position"`
	At       time.Time   `json:"timestamp"`
}

// Session holds the full state of one match. Values are treated as
// immutable snapshots: every transition returns a new Session and leaves
// its input untouched.
type Session struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	RoomCode   string         `json:"roomCode"`
	GameType   board.GameType `json:"type"`
	Mode       Mode           `json:"mode"`
	Status     Status         `json:"status"`
	Roster     []Slot         `json:"players"`
	TurnHolder *Participant   `json:"currentTurn"`
	Board      board.Board    `json:"board"`
	Moves      []MoveRecord   `json:"moves"`
	Result     Result         `json:"result,omitempty"`
	Winner     *AccountID     `json:"winner"`
	// ForfeitedBy is the account whose leave abandoned an in-progress match.
	ForfeitedBy *AccountID `json:"forfeitedBy,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsFull reports whether both roster seats are taken.
func (s Session) IsFull() bool { return len(s.Roster) == maxRoster }

// Open reports whether the session can still change state through play.
func (s Session) Open() bool { return s.Status != StatusCompleted }

// SlotOf returns the roster slot held by p.
func (s Session) SlotOf(p Participant) (Slot, bool) {
	if i := s.indexOf(p); i >= 0 {
		return s.Roster[i], true
	}
	return Slot{}, false
}

// Accounts returns the real accounts on the roster, in seat order.
func (s Session) Accounts() []AccountID {
	var out []AccountID
	for _, sl := range s.Roster {
		if !sl.Scripted {
			out = append(out, sl.Account)
		}
	}
	return out
}

func (s Session) indexOf(p Participant) int {
	for i, sl := range s.Roster {
		if sl.Participant == p {
			return i
		}
	}
	return -1
}

// clone deep-copies everything a transition may touch.
func (s Session) clone() Session {
	cp := s
	cp.Roster = append([]Slot(nil), s.Roster...)
	cp.Moves = append([]MoveRecord(nil), s.Moves...)
	if s.Board != nil {
		cp.Board = s.Board.Clone()
	}
	if s.TurnHolder != nil {
		t := *s.TurnHolder
		cp.TurnHolder = &t
	}
	if s.Winner != nil {
		w := *s.Winner
		cp.Winner = &w
	}
	if s.ForfeitedBy != nil {
		f := *s.ForfeitedBy
		cp.ForfeitedBy = &f
	}
	return cp
}

func (s *Session) touch(now time.Time) {
	s.Version++
	s.UpdatedAt = now
}
