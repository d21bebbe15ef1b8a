// internal/store/store.go
//
// Persistence contracts for the match server.
// Defines:
//   - SessionStore: archive of session snapshots (by id, by room code, open listing).
//   - StatsStore: per-account win/loss/tie records with an idempotent settlement ledger.
//   - AccountStore: account rows for the identity layer (signup/login/leaderboard).
//
// Implementations: NewMemoryStore (this package, tests and dev) and NewSQLite.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/robalobadob/arena/internal/game"
)

var (
	// ErrNotFound is returned when a session or account does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadySettled is returned when a (session, account) pair was already applied.
	ErrAlreadySettled = errors.New("already settled")
	// ErrUsernameTaken is returned by CreateAccount on a duplicate username.
	ErrUsernameTaken = errors.New("username taken")
	// ErrPersistence wraps driver-level failures.
	ErrPersistence = errors.New("persistence failure")
)

// SessionStore archives session snapshots. Writes are versioned: a snapshot
// only replaces a stored one with a lower Version.
type SessionStore interface {
	SaveSession(ctx context.Context, s game.Session) error
	// DiscardSession tombstones a session at the given version.
	DiscardSession(ctx context.Context, id string, version int) error
	FindSession(ctx context.Context, id string) (game.Session, error)
	// FindSessionByRoomCode returns the newest non-discarded session with code.
	FindSessionByRoomCode(ctx context.Context, code string) (game.Session, error)
	ListOpenSessions(ctx context.Context) ([]game.Session, error)
}

// StatsDelta is one settlement increment for one account.
type StatsDelta struct {
	Wins          int
	Losses        int
	Ties          int
	MatchesPlayed int
}

// Stats is an account's record.
type Stats struct {
	MatchesPlayed int     `json:"matchesPlayed"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Ties          int     `json:"ties"`
	WinRate       float64 `json:"winRate"`
}

// Add applies d and recomputes WinRate.
func (s Stats) Add(d StatsDelta) Stats {
	s.MatchesPlayed += d.MatchesPlayed
	s.Wins += d.Wins
	s.Losses += d.Losses
	s.Ties += d.Ties
	s.WinRate = WinRate(s.Wins, s.Losses)
	return s
}

// WinRate is 100*wins/(wins+losses), or 0 with no decided games. Ties do
// not count toward the denominator.
func WinRate(wins, losses int) float64 {
	if wins+losses == 0 {
		return 0
	}
	return 100 * float64(wins) / float64(wins+losses)
}

// StatsStore applies settlement deltas.
type StatsStore interface {
	// IncrementStats applies d to account once per sessionID. A repeat for the
	// same pair returns ErrAlreadySettled and changes nothing.
	IncrementStats(ctx context.Context, sessionID string, account game.AccountID, d StatsDelta) (float64, error)
	GetStats(ctx context.Context, account game.AccountID) (Stats, error)
}

// Account is a registered player.
type Account struct {
	ID           game.AccountID `json:"id"`
	Username     string         `json:"username"`
	PasswordHash string         `json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
	Stats        Stats          `json:"stats"`
}

// AccountStore holds accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, a Account) error
	FindAccountByID(ctx context.Context, id game.AccountID) (Account, error)
	FindAccountByUsername(ctx context.Context, username string) (Account, error)
	// Leaderboard orders by win rate then matches played, both descending.
	Leaderboard(ctx context.Context, limit int) ([]Account, error)
}

// Store bundles every contract; both implementations satisfy it.
type Store interface {
	SessionStore
	StatsStore
	AccountStore
}
