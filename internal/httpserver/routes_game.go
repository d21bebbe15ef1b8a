// internal/httpserver/routes_game.go
//
// REST routes for rooms and matches. All of them require auth; the caller's
// account id is the only identity handed to the registry.
//   - POST /rooms                 → create a multiplayer room {name, type}; empty body means tic-tac-toe
//   - GET  /rooms                 → list open multiplayer rooms
//   - POST /rooms/{code}/join     → join a room by code
//   - POST /games/single          → start a match against the scripted opponent {type}
//   - GET  /games/{id}            → current snapshot (live or archived)
//   - PUT  /games/{id}/ready      → mark the caller ready
//   - POST /games/{id}/move       → {position: 4} or {position: {row, col}}
//   - POST /games/{id}/leave      → leave the match
//   - GET  /profile/{id}          → public record of an account
//
// GET /leaderboard is public and mounted by New.

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/arena/internal/board"
	"github.com/robalobadob/arena/internal/game"
	"github.com/robalobadob/arena/internal/store"
)

const leaderboardLimit = 100

type createRoomReq struct {
	Name string         `json:"name"`
	Type board.GameType `json:"type"`
}

type moveReq struct {
	Position *board.Move `json:"position"`
}

// roomSummary is one entry of GET /rooms.
type roomSummary struct {
	ID        string           `json:"id"`
	Name      string           `json:"name,omitempty"`
	Type      board.GameType   `json:"type"`
	RoomCode  string           `json:"roomCode"`
	Status    game.Status      `json:"status"`
	Players   []game.AccountID `json:"players"`
	CreatedAt string           `json:"createdAt"`
}

// profile is the public view of an account.
type profile struct {
	ID       game.AccountID `json:"id"`
	Username string         `json:"username"`
	Stats    store.Stats    `json:"stats"`
}

func (s *Server) mountGameRoutes(r chi.Router) {
	r.Post("/rooms", s.handleCreateRoom)
	r.Get("/rooms", s.handleListRooms)
	r.Post("/rooms/{code}/join", s.handleJoinRoom)

	r.Post("/games/single", s.handleCreateSingle)
	r.Get("/games/{id}", s.handleGetGame)
	r.Put("/games/{id}/ready", s.handleReady)
	r.Post("/games/{id}/move", s.handleMove)
	r.Post("/games/{id}/leave", s.handleLeave)

	r.Get("/profile/{id}", s.handleProfile)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	if req.Type == "" {
		req.Type = board.TicTacToe
	}
	sess, err := s.reg.CreateRoom(r.Context(), req.Name, req.Type, currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sess)
}

func (s *Server) handleCreateSingle(w http.ResponseWriter, r *http.Request) {
	var req createRoomReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	if req.Type == "" {
		req.Type = board.TicTacToe
	}
	sess, err := s.reg.CreateSinglePlayer(r.Context(), req.Type, currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sess)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	out := []roomSummary{}
	for _, sess := range s.reg.ListOpen() {
		out = append(out, roomSummary{
			ID:        sess.ID,
			Name:      sess.Name,
			Type:      sess.GameType,
			RoomCode:  sess.RoomCode,
			Status:    sess.Status,
			Players:   sess.Accounts(),
			CreatedAt: sess.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	sess, err := s.reg.JoinRoom(r.Context(), chi.URLParam(r, "code"), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sess)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	sess, err := s.reg.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sess)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	sess, err := s.reg.SetReady(r.Context(), chi.URLParam(r, "id"), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sess)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	if req.Position == nil {
		writeJSONError(w, http.StatusBadRequest, "bad_json", "position is required")
		return
	}
	sess, err := s.reg.ApplyMove(r.Context(), chi.URLParam(r, "id"), currentUser(r).ID, *req.Position)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sess)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	sess, err := s.reg.Leave(r.Context(), chi.URLParam(r, "id"), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sess)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	acct, err := s.accounts.FindAccountByID(r.Context(), game.AccountID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(profile{ID: acct.ID, Username: acct.Username, Stats: acct.Stats})
}

// handleLeaderboard lists accounts by win rate then matches played.
// ?limit=N caps the list (default and maximum 100).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := leaderboardLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v < limit {
		limit = v
	}
	accts, err := s.accounts.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]profile, 0, len(accts))
	for _, a := range accts {
		out = append(out, profile{ID: a.ID, Username: a.Username, Stats: a.Stats})
	}
	_ = json.NewEncoder(w).Encode(out)
}
