package chess

import "fmt"

// Square is a board coordinate. Row 1 is White's back rank and column 1 is the A file.
type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func Sq(row, col int) Square { return Square{Row: row, Col: col} }

func (s Square) Valid() bool {
	return s.Row >= 1 && s.Row <= 8 && s.Col >= 1 && s.Col <= 8
}

func (s Square) Offset(dRow, dCol int) Square {
	return Square{Row: s.Row + dRow, Col: s.Col + dCol}
}

// String returns lowercase algebraic form ("e4").
func (s Square) String() string {
	if !s.Valid() {
		return fmt.Sprintf("(%d,%d)", s.Row, s.Col)
	}
	return fmt.Sprintf("%c%d", 'a'+s.Col-1, s.Row)
}

// Label is the uppercase form used in player-facing notices ("E4").
func (s Square) Label() string {
	if !s.Valid() {
		return s.String()
	}
	return fmt.Sprintf("%c%d", 'A'+s.Col-1, s.Row)
}

// ParseSquare accepts "e4" or "E4".
func ParseSquare(text string) (Square, error) {
	if len(text) != 2 {
		return Square{}, fmt.Errorf("invalid square %q", text)
	}
	file := text[0] | 0x20
	sq := Square{Row: int(text[1] - '0'), Col: int(file-'a') + 1}
	if !sq.Valid() {
		return Square{}, fmt.Errorf("invalid square %q", text)
	}
	return sq, nil
}
