package settle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/arena/internal/board"
	"github.com/robalobadob/arena/internal/game"
	"github.com/robalobadob/arena/internal/store"
)

var now = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

// flaky fails every update for one account until healed.
type flaky struct {
	store.Store
	broken game.AccountID
}

func (f *flaky) IncrementStats(ctx context.Context, id string, acc game.AccountID, d store.StatsDelta) (float64, error) {
	if acc == f.broken {
		return 0, store.ErrPersistence
	}
	return f.Store.IncrementStats(ctx, id, acc, d)
}

func withAccounts(t *testing.T, ids ...game.AccountID) store.Store {
	t.Helper()
	st := store.NewMemoryStore()
	for _, id := range ids {
		require.NoError(t, st.CreateAccount(context.Background(), store.Account{ID: id, Username: string(id), CreatedAt: now}))
	}
	return st
}

func started(t *testing.T) game.Session {
	t.Helper()
	s, err := game.New(game.Params{ID: "m1", GameType: board.TicTacToe, Mode: game.ModeMulti, Creator: "A", Now: now})
	require.NoError(t, err)
	s, err = game.Join(s, "B", now)
	require.NoError(t, err)
	s, err = game.SetReady(s, "A", now)
	require.NoError(t, err)
	s, err = game.SetReady(s, "B", now)
	require.NoError(t, err)
	return s
}

func play(t *testing.T, s game.Session, moves ...int) game.Session {
	t.Helper()
	for _, pos := range moves {
		var err error
		s, err = game.ApplyMove(s, s.TurnHolder.Account, board.AtIndex(pos), now)
		require.NoError(t, err)
	}
	return s
}

func TestDeltas(t *testing.T) {
	won := play(t, started(t), 0, 3, 1, 4, 2)
	assert.ElementsMatch(t, []Entry{{"A", win}, {"B", loss}}, Deltas(won))

	drawn := play(t, started(t), 0, 1, 2, 4, 3, 5, 7, 6, 8)
	assert.ElementsMatch(t, []Entry{{"A", tie}, {"B", tie}}, Deltas(drawn))

	left, err := game.Leave(play(t, started(t), 0), "B", now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Entry{{"B", loss}, {"A", win}}, Deltas(left))

	sp, err := game.New(game.Params{ID: "sp", GameType: board.TicTacToe, Mode: game.ModeSingle, Creator: "A", Now: now})
	require.NoError(t, err)
	lost := play(t, sp, 0, 1, 3)
	assert.Equal(t, []Entry{{"A", loss}}, Deltas(lost))

	assert.Empty(t, Deltas(started(t)))
}

func TestSettleIsIdempotent(t *testing.T) {
	st := withAccounts(t, "A", "B")
	s := New(st)
	won := play(t, started(t), 0, 3, 1, 4, 2)

	rep := s.Settle(context.Background(), won)
	require.NoError(t, rep.Err)
	assert.Equal(t, map[game.AccountID]float64{"A": 100, "B": 0}, rep.Applied)

	again := s.Settle(context.Background(), won)
	require.NoError(t, again.Err)
	assert.Empty(t, again.Applied)
	assert.ElementsMatch(t, []game.AccountID{"A", "B"}, again.Skipped)

	a, err := st.GetStats(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, store.Stats{MatchesPlayed: 1, Wins: 1, WinRate: 100}, a)
}

func TestSettleToleratesPartialFailure(t *testing.T) {
	base := withAccounts(t, "A", "B")
	f := &flaky{Store: base, broken: "A"}
	drawn := play(t, started(t), 0, 1, 2, 4, 3, 5, 7, 6, 8)

	rep := New(f).Settle(context.Background(), drawn)
	require.Error(t, rep.Err)
	assert.True(t, errors.Is(rep.Err, store.ErrPersistence))
	assert.Contains(t, rep.Applied, game.AccountID("B"))

	b, err := base.GetStats(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Ties)

	// once the store recovers a retry only touches the missing account
	f.broken = ""
	retry := New(f).Settle(context.Background(), drawn)
	require.NoError(t, retry.Err)
	assert.Equal(t, map[game.AccountID]float64{"A": 0}, retry.Applied)
	assert.Equal(t, []game.AccountID{"B"}, retry.Skipped)

	totals := func(id game.AccountID) int {
		st, err := base.GetStats(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, st.MatchesPlayed, st.Wins+st.Losses+st.Ties)
		return st.MatchesPlayed
	}
	assert.Equal(t, 1, totals("A"))
	assert.Equal(t, 1, totals("B"))
}
