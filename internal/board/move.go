package board

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Move is an inbound position as sent by a client: either a flat index or a
// {row, col} pair. Rules.Index normalizes it for a specific board.
type Move struct {
	Index     int
	Row       int
	Col       int
	HasCoords bool
}

// AtIndex builds a flat-index move.
func AtIndex(i int) Move { return Move{Index: i} }

// AtCell builds a {row, col} move.
func AtCell(row, col int) Move { return Move{Row: row, Col: col, HasCoords: true} }

var errBadMove = errors.New("move must be an index or {row, col}")

// UnmarshalJSON accepts `4`, `{"row":1,"col":1}` or `{"index":4}`.
func (m *Move) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return errBadMove
	}
	if data[0] != '{' {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return errBadMove
		}
		*m = AtIndex(i)
		return nil
	}
	var obj struct {
		Row   *int `json:"row"`
		Col   *int `json:"col"`
		Index *int `json:"index"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errBadMove
	}
	switch {
	case obj.Row != nil && obj.Col != nil:
		*m = AtCell(*obj.Row, *obj.Col)
	case obj.Index != nil:
		*m = AtIndex(*obj.Index)
	default:
		return errBadMove
	}
	return nil
}

// MarshalJSON writes the move in the form it was received.
func (m Move) MarshalJSON() ([]byte, error) {
	if m.HasCoords {
		return json.Marshal(map[string]int{"row": m.Row, "col": m.Col})
	}
	return json.Marshal(m.Index)
}
