package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/arena/internal/game"
	"github.com/robalobadob/arena/internal/registry"
	"github.com/robalobadob/arena/internal/store"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps a domain error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrInvalidGameType):
		return http.StatusBadRequest, "invalid_game_type"
	case errors.Is(err, game.ErrIllegalMove):
		return http.StatusBadRequest, "illegal_move"
	case errors.Is(err, game.ErrNotAParticipant):
		return http.StatusForbidden, "not_a_participant"
	case errors.Is(err, game.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, game.ErrRoomClosed):
		return http.StatusConflict, "room_closed"
	case errors.Is(err, game.ErrRoomFull):
		return http.StatusConflict, "room_full"
	case errors.Is(err, game.ErrNotInProgress):
		return http.StatusConflict, "not_in_progress"
	case errors.Is(err, game.ErrNotYourTurn):
		return http.StatusConflict, "not_your_turn"
	case errors.Is(err, registry.ErrCodeAllocationExhausted):
		return http.StatusServiceUnavailable, "code_allocation_exhausted"
	case errors.Is(err, store.ErrPersistence):
		return http.StatusInternalServerError, "persistence"
	}
	return http.StatusInternalServerError, "internal"
}

// writeError renders err as {"error","message"} with its mapped status.
func writeError(w http.ResponseWriter, err error) {
	code, name := classify(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", name).Msg("request failed")
	}
	writeJSONError(w, code, name, err.Error())
}

func writeJSONError(w http.ResponseWriter, code int, name, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{Error: name, Message: msg})
}
