package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/arena/assets"
	"github.com/robalobadob/arena/internal/board"
	"github.com/robalobadob/arena/internal/game"
	"github.com/robalobadob/arena/internal/store"
)

var t0 = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func openSQLite(t *testing.T) store.Store {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "arena.db")+"?_busy_timeout=5000&_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db, assets.Migrations()))
	// applying twice is a no-op
	require.NoError(t, store.Migrate(db, assets.Migrations()))
	return store.NewSQLite(db)
}

func eachStore(t *testing.T, fn func(t *testing.T, st store.Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, store.NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, openSQLite(t)) })
}

func session(t *testing.T, id, code string) game.Session {
	t.Helper()
	s, err := game.New(game.Params{ID: id, RoomCode: code, GameType: board.TicTacToe, Mode: game.ModeMulti, Creator: "A", Now: t0})
	require.NoError(t, err)
	return s
}

func TestSessionArchiveIsVersioned(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		v1 := session(t, "s1", "ROOM01")
		v2, err := game.Join(v1, "B", t0.Add(time.Second))
		require.NoError(t, err)

		require.NoError(t, st.SaveSession(ctx, v2))
		// an older snapshot arriving late does not regress the archive
		require.NoError(t, st.SaveSession(ctx, v1))

		got, err := st.FindSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, v2.Version, got.Version)
		assert.Len(t, got.Roster, 2)

		byCode, err := st.FindSessionByRoomCode(ctx, "ROOM01")
		require.NoError(t, err)
		assert.Equal(t, "s1", byCode.ID)

		_, err = st.FindSession(ctx, "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestDiscardIsATombstone(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		s := session(t, "s1", "ROOM01")
		require.NoError(t, st.SaveSession(ctx, s))
		require.NoError(t, st.DiscardSession(ctx, "s1", s.Version+1))

		_, err := st.FindSession(ctx, "s1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = st.FindSessionByRoomCode(ctx, "ROOM01")
		assert.ErrorIs(t, err, store.ErrNotFound)

		// a save that raced the discard cannot resurrect it
		require.NoError(t, st.SaveSession(ctx, s))
		_, err = st.FindSession(ctx, "s1")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestListOpenSessions(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		open := session(t, "open", "AAAAAA")
		done := session(t, "done", "BBBBBB")
		done.Status = game.StatusCompleted
		done.Result = game.ResultDraw
		require.NoError(t, st.SaveSession(ctx, open))
		require.NoError(t, st.SaveSession(ctx, done))

		got, err := st.ListOpenSessions(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "open", got[0].ID)
	})
}

func TestIncrementStatsSettlesOnce(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateAccount(ctx, store.Account{ID: "A", Username: "alice", PasswordHash: "x", CreatedAt: t0}))

		rate, err := st.IncrementStats(ctx, "s1", "A", store.StatsDelta{Wins: 1, MatchesPlayed: 1})
		require.NoError(t, err)
		assert.Equal(t, 100.0, rate)

		_, err = st.IncrementStats(ctx, "s1", "A", store.StatsDelta{Wins: 1, MatchesPlayed: 1})
		assert.ErrorIs(t, err, store.ErrAlreadySettled)

		rate, err = st.IncrementStats(ctx, "s2", "A", store.StatsDelta{Losses: 1, MatchesPlayed: 1})
		require.NoError(t, err)
		assert.Equal(t, 50.0, rate)

		_, err = st.IncrementStats(ctx, "s3", "A", store.StatsDelta{Ties: 1, MatchesPlayed: 1})
		require.NoError(t, err)

		stats, err := st.GetStats(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, store.Stats{MatchesPlayed: 3, Wins: 1, Losses: 1, Ties: 1, WinRate: 50}, stats)

		_, err = st.IncrementStats(ctx, "s1", "ghost", store.StatsDelta{Wins: 1, MatchesPlayed: 1})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestAccounts(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateAccount(ctx, store.Account{ID: "A", Username: "alice", PasswordHash: "h", CreatedAt: t0}))
		assert.ErrorIs(t, st.CreateAccount(ctx, store.Account{ID: "A2", Username: "ALICE", PasswordHash: "h", CreatedAt: t0}), store.ErrUsernameTaken)

		a, err := st.FindAccountByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, game.AccountID("A"), a.ID)
		assert.Equal(t, "h", a.PasswordHash)

		_, err = st.FindAccountByID(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestLeaderboardOrder(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		for _, a := range []store.Account{
			{ID: "1", Username: "one"}, {ID: "2", Username: "two"}, {ID: "3", Username: "three"},
		} {
			a.CreatedAt = t0
			require.NoError(t, st.CreateAccount(ctx, a))
		}
		win := store.StatsDelta{Wins: 1, MatchesPlayed: 1}
		loss := store.StatsDelta{Losses: 1, MatchesPlayed: 1}
		mustInc := func(sess string, id game.AccountID, d store.StatsDelta) {
			_, err := st.IncrementStats(ctx, sess, id, d)
			require.NoError(t, err)
		}
		// one: 1/1 = 100, two: 2/2 = 100 with more matches, three: 0/1
		mustInc("a", "1", win)
		mustInc("b", "2", win)
		mustInc("c", "2", win)
		mustInc("d", "3", loss)

		top, err := st.Leaderboard(ctx, 2)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, "two", top[0].Username)
		assert.Equal(t, "one", top[1].Username)
	})
}

func TestWinRate(t *testing.T) {
	assert.Equal(t, 0.0, store.WinRate(0, 0))
	assert.Equal(t, 75.0, store.WinRate(3, 1))
	assert.Equal(t, 0.0, store.WinRate(0, 4))
}
