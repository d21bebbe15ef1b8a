// internal/board/tictactoe.go
//
// Tic-tac-toe rules and the scripted opponent.
// The board is a 3x3 grid flattened row-major into 9 cells:
//
//	0 1 2
//	3 4 5
//	6 7 8
//
// Opponent policy, highest priority first:
//  1. complete three-in-a-row for the opponent
//  2. block three-in-a-row for the human
//  3. take the center
//  4. take the corner diagonally opposite a human corner
//  5. take any corner
//  6. take any side
//
// Ties inside a tier resolve to the lowest index.
package board

import (
	"encoding/json"
	"fmt"
)

const (
	gridSide  = 3
	gridCells = gridSide * gridSide
	center    = 4
)

// lines lists the 8 winning lines: 3 rows, 3 columns, 2 diagonals.
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

var (
	corners  = [4]int{0, 2, 6, 8}
	sides    = [4]int{1, 3, 5, 7}
	opposite = map[int]int{0: 8, 2: 6, 6: 2, 8: 0}
)

// Grid is the tic-tac-toe board.
type Grid [gridCells]Symbol

// Type implements Board.
func (g *Grid) Type() GameType { return TicTacToe }

// Clone implements Board.
func (g *Grid) Clone() Board {
	cp := *g
	return &cp
}

// MarshalJSON writes the grid as 9 cells, null for empty.
func (g *Grid) MarshalJSON() ([]byte, error) {
	out := make([]*string, gridCells)
	for i, c := range g {
		if c != Empty {
			s := string(c)
			out[i] = &s
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (g *Grid) UnmarshalJSON(data []byte) error {
	var cells []*string
	if err := json.Unmarshal(data, &cells); err != nil {
		return err
	}
	if len(cells) != gridCells {
		return fmt.Errorf("tic-tac-toe board must have %d cells, got %d", gridCells, len(cells))
	}
	for i, c := range cells {
		g[i] = Empty
		if c == nil {
			continue
		}
		switch Symbol(*c) {
		case X, O:
			g[i] = Symbol(*c)
		default:
			return fmt.Errorf("cell %d: unknown symbol %q", i, *c)
		}
	}
	return nil
}

// Free reports whether pos is on the board and unoccupied.
func (g *Grid) Free(pos int) bool {
	return pos >= 0 && pos < gridCells && g[pos] == Empty
}

// Full reports whether every cell is occupied.
func (g *Grid) Full() bool {
	for _, c := range g {
		if c == Empty {
			return false
		}
	}
	return true
}

type ticTacToe struct{}

func (ticTacToe) Type() GameType { return TicTacToe }

func (ticTacToe) Initial() Board { return &Grid{} }

func (ticTacToe) Index(m Move) (int, bool) {
	if !m.HasCoords {
		return m.Index, m.Index >= 0 && m.Index < gridCells
	}
	if m.Row < 0 || m.Row >= gridSide || m.Col < 0 || m.Col >= gridSide {
		return 0, false
	}
	return m.Row*gridSide + m.Col, true
}

func (ticTacToe) IsLegal(b Board, pos int) bool {
	g, ok := b.(*Grid)
	return ok && g != nil && g.Free(pos)
}

func (t ticTacToe) Apply(b Board, pos int, s Symbol) (Board, error) {
	if s != X && s != O {
		return b, fmt.Errorf("%w: symbol %q", ErrIllegal, s)
	}
	if !t.IsLegal(b, pos) {
		return b, fmt.Errorf("%w: position %d", ErrIllegal, pos)
	}
	next := *b.(*Grid)
	next[pos] = s
	return &next, nil
}

func (ticTacToe) Terminal(b Board) Outcome {
	g, ok := b.(*Grid)
	if !ok || g == nil {
		return Outcome{Kind: None}
	}
	for _, l := range lines {
		if g[l[0]] != Empty && g[l[0]] == g[l[1]] && g[l[1]] == g[l[2]] {
			return Outcome{Kind: Win, Line: []int{l[0], l[1], l[2]}, Symbol: g[l[0]]}
		}
	}
	if g.Full() {
		return Outcome{Kind: Draw}
	}
	return Outcome{Kind: None}
}

// ChooseMove implements Opponent.
func (ticTacToe) ChooseMove(b Board, opponent, human Symbol) int {
	g, ok := b.(*Grid)
	if !ok || g == nil || g.Full() {
		return NoPosition
	}
	if pos := completing(g, opponent); pos != NoPosition {
		return pos
	}
	if pos := completing(g, human); pos != NoPosition {
		return pos
	}
	if g.Free(center) {
		return center
	}
	best := NoPosition
	for _, c := range corners {
		o := opposite[c]
		if g[c] == human && g.Free(o) && (best == NoPosition || o < best) {
			best = o
		}
	}
	if best != NoPosition {
		return best
	}
	for _, c := range corners {
		if g.Free(c) {
			return c
		}
	}
	for _, s := range sides {
		if g.Free(s) {
			return s
		}
	}
	return NoPosition
}

// completing returns the lowest free cell that gives s three in a row.
func completing(g *Grid, s Symbol) int {
	for pos := 0; pos < gridCells; pos++ {
		if !g.Free(pos) {
			continue
		}
		for _, l := range lines {
			if l[0] != pos && l[1] != pos && l[2] != pos {
				continue
			}
			n := 0
			for _, i := range l {
				if i == pos || g[i] == s {
					n++
				}
			}
			if n == 3 {
				return pos
			}
		}
	}
	return NoPosition
}
