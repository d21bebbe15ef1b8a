// internal/store/memory.go
//
// In-memory implementation of Store.
// This is a lightweight persistence layer used in tests and local
// development when durability is not required.
//
// Characteristics:
//   - Sessions, accounts and the settlement ledger live in maps.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - Snapshots are round-tripped through JSON so callers never share memory
//     with the store.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/robalobadob/arena/internal/game"
)

type storedSession struct {
	version   int
	discarded bool
	raw       []byte
}

type memory struct {
	mu       sync.RWMutex
	sessions map[string]storedSession
	accounts map[game.AccountID]Account
	ledger   map[string]struct{} // sessionID|accountID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{
		sessions: make(map[string]storedSession),
		accounts: make(map[game.AccountID]Account),
		ledger:   make(map[string]struct{}),
	}
}

func (m *memory) SaveSession(ctx context.Context, s game.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: encode session: %v", ErrPersistence, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.ID]; ok && cur.version >= s.Version {
		return nil
	}
	m.sessions[s.ID] = storedSession{version: s.Version, raw: raw}
	return nil
}

func (m *memory) DiscardSession(ctx context.Context, id string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[id]; ok && cur.version >= version {
		return nil
	}
	m.sessions[id] = storedSession{version: version, discarded: true}
	return nil
}

func (m *memory) FindSession(ctx context.Context, id string) (game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur, ok := m.sessions[id]
	if !ok || cur.discarded {
		return game.Session{}, ErrNotFound
	}
	return decodeSession(cur.raw)
}

func (m *memory) FindSessionByRoomCode(ctx context.Context, code string) (game.Session, error) {
	all, err := m.live()
	if err != nil {
		return game.Session{}, err
	}
	var best *game.Session
	for i := range all {
		if all[i].RoomCode == code && (best == nil || all[i].UpdatedAt.After(best.UpdatedAt)) {
			best = &all[i]
		}
	}
	if best == nil {
		return game.Session{}, ErrNotFound
	}
	return *best, nil
}

func (m *memory) ListOpenSessions(ctx context.Context) ([]game.Session, error) {
	all, err := m.live()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, s := range all {
		if s.Open() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memory) live() ([]game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]game.Session, 0, len(m.sessions))
	for _, cur := range m.sessions {
		if cur.discarded {
			continue
		}
		s, err := decodeSession(cur.raw)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memory) IncrementStats(ctx context.Context, sessionID string, account game.AccountID, d StatsDelta) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionID + "|" + string(account)
	if _, done := m.ledger[key]; done {
		return 0, ErrAlreadySettled
	}
	a, ok := m.accounts[account]
	if !ok {
		return 0, ErrNotFound
	}
	a.Stats = a.Stats.Add(d)
	m.accounts[account] = a
	m.ledger[key] = struct{}{}
	return a.Stats.WinRate, nil
}

func (m *memory) GetStats(ctx context.Context, account game.AccountID) (Stats, error) {
	a, err := m.FindAccountByID(ctx, account)
	return a.Stats, err
}

func (m *memory) CreateAccount(ctx context.Context, a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.accounts {
		if strings.EqualFold(cur.Username, a.Username) {
			return ErrUsernameTaken
		}
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *memory) FindAccountByID(ctx context.Context, id game.AccountID) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (m *memory) FindAccountByUsername(ctx context.Context, username string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Username, username) {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (m *memory) Leaderboard(ctx context.Context, limit int) ([]Account, error) {
	m.mu.RLock()
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	m.mu.RUnlock()
	sortLeaderboard(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortLeaderboard(accts []Account) {
	sort.SliceStable(accts, func(i, j int) bool {
		a, b := accts[i].Stats, accts[j].Stats
		if a.WinRate != b.WinRate {
			return a.WinRate > b.WinRate
		}
		if a.MatchesPlayed != b.MatchesPlayed {
			return a.MatchesPlayed > b.MatchesPlayed
		}
		return accts[i].Username < accts[j].Username
	})
}

func decodeSession(raw []byte) (game.Session, error) {
	var s game.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return game.Session{}, fmt.Errorf("%w: decode session: %v", ErrPersistence, err)
	}
	return s, nil
}
