// internal/store/sqlite.go
//
// SQLite implementation of Store.
// Responsibilities:
//   - Accounts and their aggregated record (matches/wins/losses/ties/win rate).
//   - Settlement ledger (session_id, account_id) so each pair is applied once.
//   - Versioned session archive with tombstones for discarded sessions.
//
// The schema lives in assets/migrations and is applied by Migrate.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/robalobadob/arena/internal/game"
)

// tsLayout sorts lexically, unlike RFC3339Nano.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite is a Store backed by a *sql.DB opened with the sqlite3 driver.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// NewSQLite wraps an already migrated database.
func NewSQLite(db *sql.DB) *SQLite { return &SQLite{db: db} }

func (s *SQLite) SaveSession(ctx context.Context, sess game.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%w: encode session: %v", ErrPersistence, err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO sessions (id, room_code, game_type, mode, status, version, discarded, snapshot, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            room_code  = excluded.room_code,
            game_type  = excluded.game_type,
            mode       = excluded.mode,
            status     = excluded.status,
            version    = excluded.version,
            discarded  = 0,
            snapshot   = excluded.snapshot,
            updated_at = excluded.updated_at
        WHERE excluded.version > sessions.version`,
		sess.ID, sess.RoomCode, string(sess.GameType), string(sess.Mode), string(sess.Status), sess.Version,
		string(raw), ts(sess.CreatedAt), ts(sess.UpdatedAt),
	)
	return wrap(err)
}

func (s *SQLite) DiscardSession(ctx context.Context, id string, version int) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO sessions (id, version, discarded, updated_at) VALUES (?, ?, 1, ?)
        ON CONFLICT(id) DO UPDATE SET version = excluded.version, discarded = 1, updated_at = excluded.updated_at
        WHERE excluded.version > sessions.version`,
		id, version, ts(time.Now()),
	)
	return wrap(err)
}

func (s *SQLite) FindSession(ctx context.Context, id string) (game.Session, error) {
	return s.one(ctx, `SELECT snapshot FROM sessions WHERE id=? AND discarded=0`, id)
}

func (s *SQLite) FindSessionByRoomCode(ctx context.Context, code string) (game.Session, error) {
	return s.one(ctx, `SELECT snapshot FROM sessions WHERE room_code=? AND discarded=0
                       ORDER BY updated_at DESC LIMIT 1`, code)
}

func (s *SQLite) ListOpenSessions(ctx context.Context) ([]game.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT snapshot FROM sessions
        WHERE discarded=0 AND status IN (?, ?)
        ORDER BY created_at ASC`,
		string(game.StatusWaiting), string(game.StatusInProgress),
	)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var out []game.Session
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, wrap(err)
		}
		sess, err := decodeSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, wrap(rows.Err())
}

func (s *SQLite) one(ctx context.Context, query string, arg any) (game.Session, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Session{}, ErrNotFound
	}
	if err != nil {
		return game.Session{}, wrap(err)
	}
	return decodeSession([]byte(raw))
}

// IncrementStats records the ledger row and bumps the counters in one transaction.
func (s *SQLite) IncrementStats(ctx context.Context, sessionID string, account game.AccountID, d StatsDelta) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	var cur Stats
	err = tx.QueryRowContext(ctx, `SELECT matches_played, wins, losses, ties FROM accounts WHERE id=?`, string(account)).
		Scan(&cur.MatchesPlayed, &cur.Wins, &cur.Losses, &cur.Ties)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, wrap(err)
	}

	res, err := tx.ExecContext(ctx, `
        INSERT OR IGNORE INTO settlements (session_id, account_id, outcome, settled_at)
        VALUES (?, ?, ?, ?)`,
		sessionID, string(account), outcomeOf(d), ts(time.Now()),
	)
	if err != nil {
		return 0, wrap(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, wrap(err)
	} else if n == 0 {
		return 0, ErrAlreadySettled
	}

	next := cur.Add(d)
	if _, err := tx.ExecContext(ctx, `
        UPDATE accounts SET matches_played=?, wins=?, losses=?, ties=?, win_rate=? WHERE id=?`,
		next.MatchesPlayed, next.Wins, next.Losses, next.Ties, next.WinRate, string(account),
	); err != nil {
		return 0, wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, wrap(err)
	}
	return next.WinRate, nil
}

func (s *SQLite) GetStats(ctx context.Context, account game.AccountID) (Stats, error) {
	a, err := s.FindAccountByID(ctx, account)
	return a.Stats, err
}

func (s *SQLite) CreateAccount(ctx context.Context, a Account) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO accounts (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		string(a.ID), a.Username, a.PasswordHash, ts(a.CreatedAt))
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrUsernameTaken
	}
	return wrap(err)
}

const accountCols = `id, username, password_hash, created_at, matches_played, wins, losses, ties, win_rate`

func (s *SQLite) FindAccountByID(ctx context.Context, id game.AccountID) (Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE id=?`, string(id)))
}

func (s *SQLite) FindAccountByUsername(ctx context.Context, username string) (Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE username=?`, username))
}

func (s *SQLite) Leaderboard(ctx context.Context, limit int) ([]Account, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountCols+` FROM accounts
        ORDER BY win_rate DESC, matches_played DESC, username ASC LIMIT ?`, limit)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	out := make([]Account, 0, limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, wrap(rows.Err())
}

type scanner interface{ Scan(dest ...any) error }

func scanAccount(row scanner) (Account, error) {
	var a Account
	var id, created string
	err := row.Scan(&id, &a.Username, &a.PasswordHash, &created,
		&a.Stats.MatchesPlayed, &a.Stats.Wins, &a.Stats.Losses, &a.Stats.Ties, &a.Stats.WinRate)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, wrap(err)
	}
	a.ID = game.AccountID(id)
	a.CreatedAt, _ = time.Parse(tsLayout, created)
	return a, nil
}

func outcomeOf(d StatsDelta) string {
	switch {
	case d.Wins > 0:
		return "win"
	case d.Losses > 0:
		return "loss"
	case d.Ties > 0:
		return "tie"
	}
	return "played"
}

func ts(t time.Time) string { return t.UTC().Format(tsLayout) }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
