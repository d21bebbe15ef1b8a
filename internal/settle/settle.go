// internal/settle/settle.go
//
// Outcome settlement for completed sessions.
// Responsibilities:
//   - Derive one StatsDelta per real account from a terminal Session.
//   - Apply each delta through StatsStore, one update per account.
//   - Keep going when one account fails; report every failure together.
//
// Notes:
//   - The store's (session, account) ledger makes a second pass a no-op, so
//     Settle can be retried after a partial failure.
//   - The scripted opponent never has a record.

package settle

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/arena/internal/game"
	"github.com/robalobadob/arena/internal/store"
)

var (
	win  = store.StatsDelta{Wins: 1, MatchesPlayed: 1}
	loss = store.StatsDelta{Losses: 1, MatchesPlayed: 1}
	tie  = store.StatsDelta{Ties: 1, MatchesPlayed: 1}
)

// Entry is one account's share of a settlement.
type Entry struct {
	Account game.AccountID
	Delta   store.StatsDelta
}

// Report describes what one Settle pass did.
type Report struct {
	SessionID string
	// Applied holds the new win rate per account updated in this pass.
	Applied map[game.AccountID]float64
	// Skipped lists accounts that were already settled for this session.
	Skipped []game.AccountID
	// Err joins every per-account failure; nil when nothing failed.
	Err error
}

// Settler applies outcomes to a StatsStore.
type Settler struct {
	stats store.StatsStore
}

// New returns a Settler writing to stats.
func New(stats store.StatsStore) *Settler { return &Settler{stats: stats} }

// Deltas lists the increments a completed session produces. Sessions that
// are not completed produce nothing.
//
//   - win: the winner gets a win and every other real account a loss. When
//     the scripted opponent won (Winner is nil) the humans all lose.
//   - draw: every real account gets a tie.
//   - abandoned: the leaver gets a loss and the accounts still seated get a win.
func Deltas(s game.Session) []Entry {
	if s.Status != game.StatusCompleted {
		return nil
	}
	var out []Entry
	switch s.Result {
	case game.ResultWin:
		for _, acc := range s.Accounts() {
			d := loss
			if s.Winner != nil && *s.Winner == acc {
				d = win
			}
			out = append(out, Entry{acc, d})
		}
	case game.ResultDraw:
		for _, acc := range s.Accounts() {
			out = append(out, Entry{acc, tie})
		}
	case game.ResultAbandoned:
		if s.ForfeitedBy != nil {
			out = append(out, Entry{*s.ForfeitedBy, loss})
		}
		for _, acc := range s.Accounts() {
			if s.ForfeitedBy == nil || acc != *s.ForfeitedBy {
				out = append(out, Entry{acc, win})
			}
		}
	}
	return out
}

// Settle applies Deltas(s). It never returns early: a failure on one account
// is logged and recorded in Report.Err while the remaining accounts are
// still updated.
func (st *Settler) Settle(ctx context.Context, s game.Session) Report {
	rep := Report{SessionID: s.ID, Applied: map[game.AccountID]float64{}}
	var errs []error
	for _, e := range Deltas(s) {
		rate, err := st.stats.IncrementStats(ctx, s.ID, e.Account, e.Delta)
		switch {
		case err == nil:
			rep.Applied[e.Account] = rate
		case errors.Is(err, store.ErrAlreadySettled):
			rep.Skipped = append(rep.Skipped, e.Account)
		default:
			log.Warn().Err(err).
				Str("sessionId", s.ID).
				Str("account", string(e.Account)).
				Msg("settlement update failed")
			errs = append(errs, fmt.Errorf("settle %s for %s: %w", s.ID, e.Account, err))
		}
	}
	rep.Err = errors.Join(errs...)
	if len(rep.Applied) > 0 {
		log.Info().Str("sessionId", s.ID).Str("result", string(s.Result)).
			Int("accounts", len(rep.Applied)).Msg("session settled")
	}
	return rep
}
