// internal/game/engine.go
//
// Transitions for a single match session.
// Responsibilities:
//   - Create multiplayer rooms (waiting) and single-player matches (in-progress).
//   - Join, set-ready, apply-move and leave, each returning a new snapshot.
//   - Detect terminal boards and compute the scripted opponent's reply.
//
// Notes:
//   - Every function here is pure. Callers serialize access per session and
//     own persistence, settlement and event delivery.
//   - A transition that changes nothing returns the input with the same
//     Version, so callers can tell a no-op from a real change.
//   - A returned error always comes with the unchanged input session.
package game

import (
	"fmt"
	"time"

	"github.com/robalobadob/arena/internal/board"
)

const maxRoster = 2

// Params describes a session to create.
type Params struct {
	ID       string
	Name     string
	RoomCode string
	GameType board.GameType
	Mode     Mode
	Creator  AccountID
	Now      time.Time
}

// New creates a session. Multiplayer rooms start waiting with the creator in
// slot 0; single-player matches start in progress against the scripted
// opponent with the creator to move.
func New(p Params) (Session, error) {
	if !p.GameType.Valid() {
		return Session{}, fmt.Errorf("%w: %q", ErrInvalidGameType, p.GameType)
	}
	seats := board.Seats(p.GameType)
	s := Session{
		ID:        p.ID,
		Name:      p.Name,
		RoomCode:  p.RoomCode,
		GameType:  p.GameType,
		Mode:      p.Mode,
		Status:    StatusWaiting,
		Roster:    []Slot{seatFor(Human(p.Creator), seats[0])},
		Moves:     []MoveRecord{},
		Version:   1,
		CreatedAt: p.Now,
		UpdatedAt: p.Now,
	}
	switch p.Mode {
	case ModeMulti:
		return s, nil
	case ModeSingle:
		if _, ok := board.OpponentFor(p.GameType); !ok {
			return Session{}, fmt.Errorf("%w: %q has no single-player mode", ErrInvalidGameType, p.GameType)
		}
		s.Roster[0].Ready = true
		bot := seatFor(ScriptedOpponent, seats[1])
		bot.Ready = true
		s.Roster = append(s.Roster, bot)
		if err := s.start(); err != nil {
			return Session{}, err
		}
		return s, nil
	}
	return Session{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidGameType, p.Mode)
}

// Join seats acc in a waiting room. Joining twice with the same account
// returns the session unchanged.
func Join(s Session, acc AccountID, now time.Time) (Session, error) {
	if s.Status != StatusWaiting {
		return s, ErrRoomClosed
	}
	if _, ok := s.SlotOf(Human(acc)); ok {
		return s, nil
	}
	if s.IsFull() {
		return s, ErrRoomFull
	}
	next := s.clone()
	next.Roster = append(next.Roster, seatFor(Human(acc), board.Seats(s.GameType)[len(s.Roster)]))
	next.touch(now)
	return next, nil
}

// SetReady marks acc ready. Once both seats are taken and ready the match
// starts with slot 0 to move.
func SetReady(s Session, acc AccountID, now time.Time) (Session, error) {
	i := s.indexOf(Human(acc))
	if i < 0 {
		return s, ErrNotAParticipant
	}
	if s.Status != StatusWaiting || s.Roster[i].Ready {
		return s, nil
	}
	next := s.clone()
	next.Roster[i].Ready = true
	if next.IsFull() && allReady(next.Roster) {
		if err := next.start(); err != nil {
			return s, err
		}
	}
	next.touch(now)
	return next, nil
}

// ApplyMove places acc's symbol at m. In single-player the scripted reply is
// applied in the same transition.
func ApplyMove(s Session, acc AccountID, m board.Move, now time.Time) (Session, error) {
	if s.Status != StatusInProgress {
		return s, ErrNotInProgress
	}
	actor := Human(acc)
	if s.TurnHolder == nil || *s.TurnHolder != actor {
		return s, ErrNotYourTurn
	}
	rules, err := board.For(s.GameType)
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidGameType, err)
	}
	mover := s.indexOf(actor)
	if mover < 0 {
		return s, ErrNotAParticipant
	}

	next := s.clone()
	if next.Board == nil {
		next.Board = rules.Initial()
	}
	pos, ok := rules.Index(m)
	if !ok || !rules.IsLegal(next.Board, pos) {
		return s, fmt.Errorf("%w: %s", ErrIllegalMove, describe(m))
	}
	if err := next.place(rules, mover, pos, now); err != nil {
		return s, err
	}
	if next.finish(rules.Terminal(next.Board), actor) {
		next.touch(now)
		return next, nil
	}

	other := 1 - mover
	if other >= len(next.Roster) {
		return s, ErrNotAParticipant
	}
	reply := next.Roster[other]
	if next.Mode == ModeSingle && reply.Scripted {
		opp, _ := board.OpponentFor(next.GameType)
		if opp != nil {
			if pos := opp.ChooseMove(next.Board, reply.Symbol, next.Roster[mover].Symbol); pos != board.NoPosition {
				if err := next.place(rules, other, pos, now); err != nil {
					return s, err
				}
				if next.finish(rules.Terminal(next.Board), ScriptedOpponent) {
					next.touch(now)
					return next, nil
				}
			}
		}
		next.TurnHolder = &actor
	} else {
		p := reply.Participant
		next.TurnHolder = &p
	}
	next.touch(now)
	return next, nil
}

// Leave removes acc's seat. Leaving an in-progress match abandons it: the
// leaver forfeits and a remaining account, if any, is recorded as winner.
// A session whose roster ends up empty should be discarded by the caller.
// A completed session keeps its roster: leaving it is a no-op, so the
// archived result and its settlement stay intact.
func Leave(s Session, acc AccountID, now time.Time) (Session, error) {
	i := s.indexOf(Human(acc))
	if i < 0 {
		return s, ErrNotAParticipant
	}
	if s.Status == StatusCompleted {
		return s, nil
	}
	next := s.clone()
	next.Roster = append(next.Roster[:i], next.Roster[i+1:]...)

	switch s.Status {
	case StatusInProgress:
		next.Status = StatusCompleted
		next.Result = ResultAbandoned
		next.TurnHolder = nil
		leaver := acc
		next.ForfeitedBy = &leaver
		if rest := next.Accounts(); len(rest) > 0 {
			w := rest[0]
			next.Winner = &w
		}
	case StatusWaiting:
		// slot 0 always holds the first seat
		seats := board.Seats(s.GameType)
		for j := range next.Roster {
			next.Roster[j].Symbol = seats[j].Symbol
			next.Roster[j].Color = seats[j].Color
		}
	}
	next.touch(now)
	return next, nil
}

// start moves a full, ready session into play.
func (s *Session) start() error {
	rules, err := board.For(s.GameType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGameType, err)
	}
	if s.Board == nil {
		s.Board = rules.Initial()
	}
	first := s.Roster[0].Participant
	s.TurnHolder = &first
	s.Status = StatusInProgress
	return nil
}

// place applies the move of roster slot i and logs it.
func (s *Session) place(rules board.Rules, i, pos int, now time.Time) error {
	sl := s.Roster[i]
	b, err := rules.Apply(s.Board, pos, sl.Symbol)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	s.Board = b
	s.Moves = append(s.Moves, MoveRecord{Actor: sl.Participant, Position: pos, At: now})
	return nil
}

// finish completes the session if out is terminal; mover made the last move.
func (s *Session) finish(out board.Outcome, mover Participant) bool {
	switch out.Kind {
	case board.Win:
		s.Result = ResultWin
		if !mover.Scripted {
			w := mover.Account
			s.Winner = &w
		}
	case board.Draw:
		s.Result = ResultDraw
	default:
		return false
	}
	s.Status = StatusCompleted
	s.TurnHolder = nil
	return true
}

func seatFor(p Participant, seat board.Seat) Slot {
	return Slot{Participant: p, Symbol: seat.Symbol, Color: seat.Color}
}

func allReady(roster []Slot) bool {
	for _, sl := range roster {
		if !sl.Ready {
			return false
		}
	}
	return true
}

func describe(m board.Move) string {
	if m.HasCoords {
		return fmt.Sprintf("row %d col %d", m.Row, m.Col)
	}
	return fmt.Sprintf("position %d", m.Index)
}
