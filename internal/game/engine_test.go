package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/arena/internal/board"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newRoom(t *testing.T) Session {
	t.Helper()
	s, err := New(Params{ID: "s1", RoomCode: "ABC123", GameType: board.TicTacToe, Mode: ModeMulti, Creator: "A", Now: t0})
	require.NoError(t, err)
	return s
}

func startedRoom(t *testing.T) Session {
	t.Helper()
	s := newRoom(t)
	s, err := Join(s, "B", t0)
	require.NoError(t, err)
	s, err = SetReady(s, "A", t0)
	require.NoError(t, err)
	s, err = SetReady(s, "B", t0)
	require.NoError(t, err)
	return s
}

func play(t *testing.T, s Session, moves ...int) Session {
	t.Helper()
	for _, pos := range moves {
		var err error
		s, err = ApplyMove(s, s.TurnHolder.Account, board.AtIndex(pos), t0)
		require.NoError(t, err, "move %d", pos)
	}
	return s
}

func TestFreshMultiplayerRoom(t *testing.T) {
	s := newRoom(t)
	assert.Equal(t, StatusWaiting, s.Status)
	require.Len(t, s.Roster, 1)
	assert.Equal(t, Human("A"), s.Roster[0].Participant)
	assert.Equal(t, board.X, s.Roster[0].Symbol)
	assert.Nil(t, s.TurnHolder)

	s, err := Join(s, "B", t0)
	require.NoError(t, err)
	require.Len(t, s.Roster, 2)
	assert.Equal(t, board.O, s.Roster[1].Symbol)
	assert.False(t, s.Roster[1].Ready)
	assert.Equal(t, StatusWaiting, s.Status)

	s, err = SetReady(s, "A", t0)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, s.Status)

	s, err = SetReady(s, "B", t0)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, s.Status)
	require.NotNil(t, s.TurnHolder)
	assert.Equal(t, Human("A"), *s.TurnHolder)
	assert.Equal(t, &board.Grid{}, s.Board)
}

func TestNewRejectsUnsupportedGameType(t *testing.T) {
	_, err := New(Params{GameType: "go", Mode: ModeMulti, Creator: "A"})
	assert.ErrorIs(t, err, ErrInvalidGameType)

	_, err = New(Params{GameType: board.Chess, Mode: ModeSingle, Creator: "A"})
	assert.ErrorIs(t, err, ErrInvalidGameType)

	s, err := New(Params{GameType: board.Chess, Mode: ModeMulti, Creator: "A"})
	require.NoError(t, err)
	assert.Equal(t, "white", s.Roster[0].Color)
	assert.Equal(t, board.Empty, s.Roster[0].Symbol)
}

func TestJoinErrorsAndIdempotence(t *testing.T) {
	s := newRoom(t)
	s, err := Join(s, "B", t0)
	require.NoError(t, err)

	again, err := Join(s, "B", t0)
	require.NoError(t, err)
	assert.Equal(t, s.Version, again.Version)
	assert.Len(t, again.Roster, 2)

	_, err = Join(s, "C", t0)
	assert.ErrorIs(t, err, ErrRoomFull)

	started := startedRoom(t)
	_, err = Join(started, "C", t0)
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestSetReadyRequiresParticipant(t *testing.T) {
	_, err := SetReady(newRoom(t), "Z", t0)
	assert.ErrorIs(t, err, ErrNotAParticipant)

	// alone and ready is still waiting
	s, err := SetReady(newRoom(t), "A", t0)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, s.Status)
}

func TestMultiplayerTurnAlternationAndWin(t *testing.T) {
	s := startedRoom(t)

	s = play(t, s, 0)
	assert.Equal(t, Human("B"), *s.TurnHolder)
	s = play(t, s, 3)
	assert.Equal(t, Human("A"), *s.TurnHolder)
	s = play(t, s, 1, 4)
	assert.Equal(t, Human("A"), *s.TurnHolder)

	s = play(t, s, 2)
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, ResultWin, s.Result)
	require.NotNil(t, s.Winner)
	assert.Equal(t, AccountID("A"), *s.Winner)
	assert.Nil(t, s.TurnHolder)
	assert.Len(t, s.Moves, 5)

	_, err := ApplyMove(s, "B", board.AtIndex(8), t0)
	assert.ErrorIs(t, err, ErrNotInProgress)
}

func TestMultiplayerDraw(t *testing.T) {
	s := startedRoom(t)
	// X O X / X O O / O X X
	s = play(t, s, 0, 1, 2, 4, 3, 5, 7, 6, 8)
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, ResultDraw, s.Result)
	assert.Nil(t, s.Winner)
	assert.Nil(t, s.TurnHolder)
}

func TestRejectedMovesLeaveStateUnchanged(t *testing.T) {
	s := play(t, startedRoom(t), 4)

	_, err := ApplyMove(s, "A", board.AtIndex(0), t0)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	got, err := ApplyMove(s, "B", board.AtIndex(4), t0)
	assert.ErrorIs(t, err, ErrIllegalMove)
	assert.Equal(t, s, got)

	_, err = ApplyMove(s, "B", board.AtCell(3, 3), t0)
	assert.ErrorIs(t, err, ErrIllegalMove)

	_, err = ApplyMove(s, "Z", board.AtIndex(0), t0)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	assert.Len(t, s.Moves, 1)
	assert.Equal(t, Human("B"), *s.TurnHolder)
	assert.Equal(t, board.X, s.Board.(*board.Grid)[4])

	_, err = ApplyMove(newRoom(t), "A", board.AtIndex(0), t0)
	assert.ErrorIs(t, err, ErrNotInProgress)
}

func TestTransitionsDoNotMutateInput(t *testing.T) {
	s := startedRoom(t)
	before, err := json.Marshal(s)
	require.NoError(t, err)

	_ = play(t, s, 0)
	_, _ = Leave(s, "A", t0)

	after, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestSinglePlayerOpponentReplies(t *testing.T) {
	s, err := New(Params{ID: "sp", GameType: board.TicTacToe, Mode: ModeSingle, Creator: "A", Now: t0})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, s.Status)
	assert.Equal(t, Human("A"), *s.TurnHolder)
	require.Len(t, s.Roster, 2)
	assert.Equal(t, ScriptedOpponent, s.Roster[1].Participant)
	assert.True(t, s.Roster[0].Ready && s.Roster[1].Ready)
	assert.Equal(t, &board.Grid{}, s.Board)

	s, err = ApplyMove(s, "A", board.AtIndex(0), t0)
	require.NoError(t, err)
	g := s.Board.(*board.Grid)
	assert.Equal(t, board.X, g[0])
	assert.Equal(t, board.O, g[4])
	require.Len(t, s.Moves, 2)
	assert.Equal(t, ScriptedOpponent, s.Moves[1].Actor)
	assert.Equal(t, Human("A"), *s.TurnHolder)
	assert.Equal(t, StatusInProgress, s.Status)
}

func TestSinglePlayerOpponentWins(t *testing.T) {
	s, err := New(Params{ID: "sp", GameType: board.TicTacToe, Mode: ModeSingle, Creator: "A", Now: t0})
	require.NoError(t, err)
	// A:0 → O:4, A:1 → O blocks 2, A:3 → O:6 completes 2-4-6
	s = play(t, s, 0, 1, 3)
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, ResultWin, s.Result)
	assert.Nil(t, s.Winner)
	assert.Nil(t, s.TurnHolder)
	assert.Len(t, s.Moves, 6)
}

func TestLeave(t *testing.T) {
	t.Run("waiting keeps room and reseats", func(t *testing.T) {
		s, err := Join(newRoom(t), "B", t0)
		require.NoError(t, err)
		s, err = Leave(s, "A", t0)
		require.NoError(t, err)
		assert.Equal(t, StatusWaiting, s.Status)
		require.Len(t, s.Roster, 1)
		assert.Equal(t, Human("B"), s.Roster[0].Participant)
		assert.Equal(t, board.X, s.Roster[0].Symbol)
	})

	t.Run("last player empties roster", func(t *testing.T) {
		s, err := Leave(newRoom(t), "A", t0)
		require.NoError(t, err)
		assert.Empty(t, s.Roster)
	})

	t.Run("in progress abandons", func(t *testing.T) {
		s, err := Leave(play(t, startedRoom(t), 0), "A", t0)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, s.Status)
		assert.Equal(t, ResultAbandoned, s.Result)
		assert.Nil(t, s.TurnHolder)
		require.NotNil(t, s.ForfeitedBy)
		assert.Equal(t, AccountID("A"), *s.ForfeitedBy)
		require.NotNil(t, s.Winner)
		assert.Equal(t, AccountID("B"), *s.Winner)
	})

	t.Run("completed match is kept", func(t *testing.T) {
		done := play(t, startedRoom(t), 0, 3, 1, 4, 2)
		require.Equal(t, StatusCompleted, done.Status)

		s, err := Leave(done, "B", t0.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, done.Version, s.Version)
		assert.Equal(t, []AccountID{"A", "B"}, s.Accounts())

		s, err = Leave(s, "A", t0.Add(time.Minute))
		require.NoError(t, err)
		assert.Len(t, s.Roster, 2)
		assert.Equal(t, ResultWin, s.Result)
	})

	t.Run("stranger", func(t *testing.T) {
		_, err := Leave(newRoom(t), "Z", t0)
		assert.ErrorIs(t, err, ErrNotAParticipant)
	})
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	s := play(t, startedRoom(t), 4, 0)
	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var got Session
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, s.Board, got.Board)
	assert.Equal(t, s.Roster, got.Roster)
	assert.Equal(t, *s.TurnHolder, *got.TurnHolder)
	assert.Equal(t, s.Version, got.Version)
	assert.Len(t, got.Moves, 2)
}
