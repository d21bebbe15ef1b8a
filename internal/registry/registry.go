// internal/registry/registry.go
//
// Live session registry and per-session concurrency guard.
// Responsibilities:
//   - Own the in-memory copy of every live session.
//   - Run each state-machine transition under that session's mutex, so the
//     REST path and the websocket path can never interleave on one session.
//   - Allocate room codes unique among open multiplayer sessions.
//   - After a transition: publish events, archive the snapshot, and settle
//     a session that just completed.
//
// Notes:
//   - Lock order is entry.mu → Registry.mu → Registry.codeMu.
//   - Archive writes and settlement run after the entry lock is released;
//     the store's versioned writes keep late saves from regressing state.
//     Discards are the exception: the tombstone is written under the lock.
//   - Events are published while the entry lock is held so subscribers see
//     snapshots in version order. Publishers must not block.

package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/arena/internal/board"
	"github.com/robalobadob/arena/internal/events"
	"github.com/robalobadob/arena/internal/game"
	"github.com/robalobadob/arena/internal/settle"
	"github.com/robalobadob/arena/internal/store"
)

// ErrNotCompleted is returned by Settle for a session still in play.
var ErrNotCompleted = errors.New("session not completed")

// Settler applies the outcome of a completed session.
type Settler interface {
	Settle(ctx context.Context, s game.Session) settle.Report
}

type entry struct {
	mu   sync.Mutex
	sess game.Session
	// gone is set once the session was discarded; holders of a stale
	// pointer must treat it as missing.
	gone bool
}

// Registry serializes all transitions per session id.
type Registry struct {
	store   store.SessionStore
	settler Settler
	pub     events.Publisher
	now     func() time.Time
	newCode CodeSource
	newID   func() string

	mu      sync.Mutex
	entries map[string]*entry

	codeMu sync.Mutex
	codes  codeBook
}

// Option customizes a Registry.
type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

// WithCodes replaces the random room-code source.
func WithCodes(src CodeSource) Option { return func(r *Registry) { r.newCode = src } }

// WithIDs replaces the uuid session-id source.
func WithIDs(next func() string) Option { return func(r *Registry) { r.newID = next } }

// WithPublisher sets the event sink; the default drops events.
func WithPublisher(p events.Publisher) Option { return func(r *Registry) { r.pub = p } }

// New builds an empty registry. Call Restore to reload open sessions.
func New(st store.SessionStore, settler Settler, opts ...Option) *Registry {
	r := &Registry{
		store:   st,
		settler: settler,
		pub:     events.Nop{},
		now:     time.Now,
		newCode: RandomCode,
		newID:   uuid.NewString,
		entries: make(map[string]*entry),
		codes:   make(codeBook),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// CreateRoom opens a waiting multiplayer room with creator in slot 0.
func (r *Registry) CreateRoom(ctx context.Context, name string, t board.GameType, creator game.AccountID) (game.Session, error) {
	id := r.newID()

	r.codeMu.Lock()
	code, err := r.codes.reserve(r.newCode, id)
	r.codeMu.Unlock()
	if err != nil {
		return game.Session{}, err
	}

	s, err := game.New(game.Params{
		ID: id, Name: name, RoomCode: code, GameType: t,
		Mode: game.ModeMulti, Creator: creator, Now: r.now(),
	})
	if err != nil {
		r.codeMu.Lock()
		r.codes.release(code, id)
		r.codeMu.Unlock()
		return game.Session{}, err
	}
	r.insert(ctx, s)
	log.Info().Str("sessionId", id).Str("roomCode", code).Str("gameType", string(t)).
		Str("account", string(creator)).Msg("room created")
	return s, nil
}

// CreateSinglePlayer starts a match against the scripted opponent.
func (r *Registry) CreateSinglePlayer(ctx context.Context, t board.GameType, creator game.AccountID) (game.Session, error) {
	code, err := r.newCode()
	if err != nil {
		return game.Session{}, err
	}
	id := r.newID()
	s, err := game.New(game.Params{
		ID: id, RoomCode: singlePlayerPrefix + code, GameType: t,
		Mode: game.ModeSingle, Creator: creator, Now: r.now(),
	})
	if err != nil {
		return game.Session{}, err
	}
	r.insert(ctx, s)
	log.Info().Str("sessionId", id).Str("gameType", string(t)).
		Str("account", string(creator)).Msg("single-player match created")
	return s, nil
}

func (r *Registry) insert(ctx context.Context, s game.Session) {
	e := &entry{sess: s}
	e.mu.Lock()
	r.mu.Lock()
	r.entries[s.ID] = e
	r.mu.Unlock()
	r.pub.Publish(events.SessionUpdate(s))
	e.mu.Unlock()
	r.archive(ctx, s)
}

// JoinRoom seats acc in the room with the given code.
func (r *Registry) JoinRoom(ctx context.Context, code string, acc game.AccountID) (game.Session, error) {
	id, err := r.resolveCode(ctx, code)
	if err != nil {
		return game.Session{}, err
	}
	return r.mutate(ctx, id, func(s game.Session) (game.Session, error) {
		return game.Join(s, acc, r.now())
	})
}

// SetReady marks acc ready in session id.
func (r *Registry) SetReady(ctx context.Context, id string, acc game.AccountID) (game.Session, error) {
	return r.mutate(ctx, id, func(s game.Session) (game.Session, error) {
		return game.SetReady(s, acc, r.now())
	})
}

// ApplyMove plays m for acc in session id.
func (r *Registry) ApplyMove(ctx context.Context, id string, acc game.AccountID, m board.Move) (game.Session, error) {
	return r.mutate(ctx, id, func(s game.Session) (game.Session, error) {
		return game.ApplyMove(s, acc, m, r.now())
	})
}

// Leave removes acc from session id. A room left empty is discarded.
func (r *Registry) Leave(ctx context.Context, id string, acc game.AccountID) (game.Session, error) {
	return r.mutate(ctx, id, func(s game.Session) (game.Session, error) {
		return game.Leave(s, acc, r.now())
	})
}

// mutate runs op under the session guard and handles everything that follows
// a real change.
func (r *Registry) mutate(ctx context.Context, id string, op func(game.Session) (game.Session, error)) (game.Session, error) {
	e, err := r.lookup(ctx, id)
	if err != nil {
		return game.Session{}, err
	}

	e.mu.Lock()
	if e.gone {
		e.mu.Unlock()
		return game.Session{}, game.ErrSessionNotFound
	}
	prev := e.sess
	next, err := op(prev)
	if err != nil {
		e.mu.Unlock()
		return prev, err
	}
	if next.Version == prev.Version {
		e.mu.Unlock()
		return prev, nil
	}
	e.sess = next
	discarded := len(next.Roster) == 0
	finished := prev.Status != game.StatusCompleted && next.Status == game.StatusCompleted
	if discarded {
		r.forget(ctx, e, next)
	} else if finished {
		r.codeMu.Lock()
		r.codes.release(next.RoomCode, id)
		r.codeMu.Unlock()
	}
	r.pub.Publish(events.SessionUpdate(next))
	if finished && !discarded {
		r.pub.Publish(events.Finished(next))
	}
	e.mu.Unlock()

	if discarded {
		log.Info().Str("sessionId", id).Msg("empty room discarded")
		return next, nil
	}
	r.archive(ctx, next)
	if finished {
		r.settler.Settle(ctx, next)
	}
	return next, nil
}

// forget discards s for good. The caller holds e.mu. The tombstone is
// written before the entry and its code are released, so a concurrent
// lookup either waits on e.mu or finds nothing in the store to adopt.
func (r *Registry) forget(ctx context.Context, e *entry, s game.Session) {
	if err := r.store.DiscardSession(ctx, s.ID, s.Version); err != nil {
		log.Warn().Err(err).Str("sessionId", s.ID).Msg("discard archived session")
	}
	e.gone = true
	r.mu.Lock()
	delete(r.entries, s.ID)
	r.mu.Unlock()
	r.codeMu.Lock()
	r.codes.release(s.RoomCode, s.ID)
	r.codeMu.Unlock()
}

func (r *Registry) archive(ctx context.Context, s game.Session) {
	if err := r.store.SaveSession(ctx, s); err != nil {
		log.Warn().Err(err).Str("sessionId", s.ID).Int("version", s.Version).Msg("archive session")
	}
}

// lookup returns the live entry for id, adopting an archived session when
// the registry does not hold it yet.
func (r *Registry) lookup(ctx context.Context, id string) (*entry, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if ok {
		return e, nil
	}
	s, err := r.store.FindSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, game.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.adopt(s), nil
}

func (r *Registry) adopt(s game.Session) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[s.ID]; ok {
		return e
	}
	e := &entry{sess: s}
	r.entries[s.ID] = e
	if s.Mode == game.ModeMulti && s.Open() {
		r.codeMu.Lock()
		if owner, taken := r.codes[s.RoomCode]; !taken {
			r.codes[s.RoomCode] = s.ID
		} else if owner != s.ID {
			log.Warn().Str("sessionId", s.ID).Str("roomCode", s.RoomCode).Msg("room code already in use")
		}
		r.codeMu.Unlock()
	}
	return e
}

func (r *Registry) resolveCode(ctx context.Context, code string) (string, error) {
	r.codeMu.Lock()
	id, ok := r.codes[code]
	r.codeMu.Unlock()
	if ok {
		return id, nil
	}
	s, err := r.store.FindSessionByRoomCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return "", game.ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	r.adopt(s)
	return s.ID, nil
}

// Get returns the current snapshot of id, falling back to the archive.
func (r *Registry) Get(ctx context.Context, id string) (game.Session, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if ok {
		e.mu.Lock()
		s, gone := e.sess, e.gone
		e.mu.Unlock()
		if !gone {
			return s, nil
		}
	}
	s, err := r.store.FindSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return game.Session{}, game.ErrSessionNotFound
	}
	return s, err
}

// GetByCode returns the session behind a room code.
func (r *Registry) GetByCode(ctx context.Context, code string) (game.Session, error) {
	id, err := r.resolveCode(ctx, code)
	if err != nil {
		return game.Session{}, err
	}
	return r.Get(ctx, id)
}

// ListOpen lists multiplayer sessions still waiting or in progress, oldest first.
func (r *Registry) ListOpen() []game.Session {
	out := make([]game.Session, 0)
	for _, e := range r.snapshot() {
		e.mu.Lock()
		s, gone := e.sess, e.gone
		e.mu.Unlock()
		if !gone && s.Mode == game.ModeMulti && s.Open() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Registry) snapshot() []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// Restore reloads open sessions from the archive, e.g. after a restart.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	open, err := r.store.ListOpenSessions(ctx)
	if err != nil {
		return 0, err
	}
	for _, s := range open {
		r.adopt(s)
	}
	log.Info().Int("sessions", len(open)).Msg("sessions restored")
	return len(open), nil
}

// Settle re-runs settlement for a completed session. The store ledger makes
// accounts already settled a no-op.
func (r *Registry) Settle(ctx context.Context, id string) (settle.Report, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return settle.Report{}, err
	}
	if s.Status != game.StatusCompleted {
		return settle.Report{}, ErrNotCompleted
	}
	return r.settler.Settle(ctx, s), nil
}

// SweepResult counts what one Sweep did.
type SweepResult struct {
	Expired   int // waiting rooms discarded
	Released  int // completed sessions dropped from memory
	Resettled int // completed sessions whose settlement was retried
}

// Sweep discards waiting rooms idle longer than waitingTTL and drops
// completed sessions older than completedTTL from memory. Completed sessions
// stay archived; their settlement is retried before they are released.
// In-progress sessions are never touched.
func (r *Registry) Sweep(ctx context.Context, waitingTTL, completedTTL time.Duration) SweepResult {
	now := r.now()
	var res SweepResult
	for _, e := range r.snapshot() {
		e.mu.Lock()
		if e.gone {
			e.mu.Unlock()
			continue
		}
		s := e.sess
		idle := now.Sub(s.UpdatedAt)
		var expire, release bool
		switch {
		case s.Status == game.StatusWaiting && waitingTTL > 0 && idle > waitingTTL:
			expire = true
		case s.Status == game.StatusCompleted && idle > completedTTL:
			release = true
		}
		switch {
		case expire:
			tomb := s
			tomb.Version++
			r.forget(ctx, e, tomb)
		case release:
			e.gone = true
			r.mu.Lock()
			delete(r.entries, s.ID)
			r.mu.Unlock()
		}
		e.mu.Unlock()

		switch {
		case expire:
			res.Expired++
		case release:
			if rep := r.settler.Settle(ctx, s); len(rep.Applied) > 0 {
				res.Resettled++
			}
			res.Released++
		}
	}
	if res != (SweepResult{}) {
		log.Info().Int("expired", res.Expired).Int("released", res.Released).
			Int("resettled", res.Resettled).Msg("sweep finished")
	}
	return res
}

// Len reports how many sessions are live in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
