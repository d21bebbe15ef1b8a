package game

import (
	"encoding/json"

	"github.com/robalobadob/arena/internal/board"
)

// UnmarshalJSON restores a snapshot written by json.Marshal, rebuilding the
// board variant from the session's game type.
func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	var aux struct {
		plain
		Board json.RawMessage `json:"board"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b, err := board.Decode(aux.GameType, aux.Board)
	if err != nil {
		return err
	}
	*s = Session(aux.plain)
	s.Board = b
	return nil
}
