package chess

import (
	"encoding/json"
	"fmt"
	"strings"
)

var backRank = [8]Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// Board is an 8x8 grid of optional pieces. It is a plain value: assigning a
// Board copies it, which is what legality simulation relies on.
type Board struct {
	cells [8][8]Piece
}

// NewBoard returns a board in the opening layout.
func NewBoard() Board {
	var b Board
	b.Reset()
	return b
}

// Place overwrites the slot at sq.
func (b *Board) Place(sq Square, p Piece) {
	b.cells[sq.Row-1][sq.Col-1] = p
}

func (b *Board) Remove(sq Square) {
	b.cells[sq.Row-1][sq.Col-1] = Piece{}
}

// Get returns the occupant of sq, if any.
func (b *Board) Get(sq Square) (Piece, bool) {
	p := b.cells[sq.Row-1][sq.Col-1]
	return p, !p.IsZero()
}

func (b *Board) Empty(sq Square) bool {
	_, ok := b.Get(sq)
	return !ok
}

// Clear removes every piece.
func (b *Board) Clear() {
	b.cells = [8][8]Piece{}
}

// Reset restores the standard opening layout.
func (b *Board) Reset() {
	b.Clear()
	for i, k := range backRank {
		col := i + 1
		b.Place(Sq(1, col), Piece{Color: White, Kind: k})
		b.Place(Sq(2, col), Piece{Color: White, Kind: Pawn})
		b.Place(Sq(7, col), Piece{Color: Black, Kind: Pawn})
		b.Place(Sq(8, col), Piece{Color: Black, Kind: k})
	}
}

func (b *Board) Equal(other *Board) bool {
	return b.cells == other.cells
}

// Each calls fn for every occupied square, row by row from row 1.
func (b *Board) Each(fn func(Square, Piece)) {
	for r := 1; r <= 8; r++ {
		for c := 1; c <= 8; c++ {
			if p := b.cells[r-1][c-1]; !p.IsZero() {
				fn(Sq(r, c), p)
			}
		}
	}
}

// KingSquare locates color's king.
func (b *Board) KingSquare(color Color) (Square, bool) {
	for r := 1; r <= 8; r++ {
		for c := 1; c <= 8; c++ {
			p := b.cells[r-1][c-1]
			if p.Kind == King && p.Color == color {
				return Sq(r, c), true
			}
		}
	}
	return Square{}, false
}

// Rows renders the board as eight strings, row 1 first, using FEN letters and '.' for empty.
func (b *Board) Rows() []string {
	rows := make([]string, 8)
	for r := 0; r < 8; r++ {
		var sb strings.Builder
		for c := 0; c < 8; c++ {
			sb.WriteByte(b.cells[r][c].Letter())
		}
		rows[r] = sb.String()
	}
	return rows
}

// BoardFromRows is the inverse of Rows.
func BoardFromRows(rows []string) (Board, error) {
	var b Board
	if len(rows) != 8 {
		return b, fmt.Errorf("board needs 8 rows, got %d", len(rows))
	}
	for r, row := range rows {
		if len(row) != 8 {
			return b, fmt.Errorf("row %d: need 8 cells, got %d", r+1, len(row))
		}
		for c := 0; c < 8; c++ {
			ch := row[c]
			if ch == '.' {
				continue
			}
			kind, ok := kindFromLetter(ch)
			if !ok {
				return b, fmt.Errorf("row %d: unknown piece %q", r+1, ch)
			}
			color := White
			if ch >= 'a' && ch <= 'z' {
				color = Black
			}
			b.cells[r][c] = Piece{Color: color, Kind: kind}
		}
	}
	return b, nil
}

func (b Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Rows())
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var rows []string
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if rows == nil {
		return nil
	}
	parsed, err := BoardFromRows(rows)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// String draws the board with row 8 on top, for logs and test failures.
func (b *Board) String() string {
	rows := b.Rows()
	var sb strings.Builder
	for r := 7; r >= 0; r-- {
		fmt.Fprintf(&sb, "%d %s\n", r+1, rows[r])
	}
	sb.WriteString("  abcdefgh")
	return sb.String()
}
