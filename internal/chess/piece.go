package chess

import (
	"fmt"
	"strings"
)

// Color identifies a side.
type Color int8

const (
	White Color = iota
	Black
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == Black {
		return "BLACK"
	}
	return "WHITE"
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "WHITE":
		*c = White
	case "BLACK":
		*c = Black
	default:
		return fmt.Errorf("unknown color %q", string(b))
	}
	return nil
}

// homeRow is the back rank of c.
func (c Color) homeRow() int {
	if c == White {
		return 1
	}
	return 8
}

// Kind is the piece type. NoKind doubles as "no promotion" on a Move.
type Kind int8

const (
	NoKind Kind = iota
	King
	Queen
	Bishop
	Knight
	Rook
	Pawn
)

var kindNames = map[Kind]string{
	King:   "KING",
	Queen:  "QUEEN",
	Bishop: "BISHOP",
	Knight: "KNIGHT",
	Rook:   "ROOK",
	Pawn:   "PAWN",
}

var kindLetters = map[Kind]byte{
	King:   'k',
	Queen:  'q',
	Bishop: 'b',
	Knight: 'n',
	Rook:   'r',
	Pawn:   'p',
}

// PromotionKinds lists the kinds a pawn may become, in emission order.
var PromotionKinds = []Kind{Queen, Rook, Bishop, Knight}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return ""
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(b)))
	if name == "" {
		*k = NoKind
		return nil
	}
	for kind, n := range kindNames {
		if n == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown piece kind %q", string(b))
}

func kindFromLetter(ch byte) (Kind, bool) {
	ch |= 0x20
	for kind, l := range kindLetters {
		if l == ch {
			return kind, true
		}
	}
	return NoKind, false
}

// Piece is a (color, kind) pair. The zero Piece (NoKind) is an empty slot.
type Piece struct {
	Color Color
	Kind  Kind
}

func (p Piece) IsZero() bool { return p.Kind == NoKind }

// Letter is the FEN-style letter: uppercase for White.
func (p Piece) Letter() byte {
	l, ok := kindLetters[p.Kind]
	if !ok {
		return '.'
	}
	if p.Color == White {
		return l - 0x20
	}
	return l
}

func (p Piece) String() string {
	if p.IsZero() {
		return "-"
	}
	return p.Color.String() + " " + p.Kind.String()
}

var (
	kingSteps   = [][2]int{{1, -1}, {1, 0}, {1, 1}, {0, -1}, {0, 1}, {-1, -1}, {-1, 0}, {-1, 1}}
	knightSteps = [][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	diagonals   = [][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	orthogonals = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	allRays     = append(append([][2]int{}, diagonals...), orthogonals...)
)

// PseudoMoves returns the geometrically reachable moves of p standing on from,
// ignoring whether the move would leave p's king attacked. Castling is not included.
func (p Piece) PseudoMoves(b *Board, from Square) []Move {
	switch p.Kind {
	case King:
		return stepMoves(b, p.Color, from, kingSteps)
	case Knight:
		return stepMoves(b, p.Color, from, knightSteps)
	case Bishop:
		return rayMoves(b, p.Color, from, diagonals)
	case Rook:
		return rayMoves(b, p.Color, from, orthogonals)
	case Queen:
		return rayMoves(b, p.Color, from, allRays)
	case Pawn:
		return pawnMoves(b, p.Color, from)
	default:
		return nil
	}
}

func stepMoves(b *Board, color Color, from Square, steps [][2]int) []Move {
	moves := make([]Move, 0, len(steps))
	for _, d := range steps {
		to := from.Offset(d[0], d[1])
		if !to.Valid() {
			continue
		}
		if occ, ok := b.Get(to); ok && occ.Color == color {
			continue
		}
		moves = append(moves, Move{Start: from, End: to})
	}
	return moves
}

func rayMoves(b *Board, color Color, from Square, dirs [][2]int) []Move {
	var moves []Move
	for _, d := range dirs {
		for to := from.Offset(d[0], d[1]); to.Valid(); to = to.Offset(d[0], d[1]) {
			occ, ok := b.Get(to)
			if ok && occ.Color == color {
				break
			}
			moves = append(moves, Move{Start: from, End: to})
			if ok {
				break
			}
		}
	}
	return moves
}

func pawnMoves(b *Board, color Color, from Square) []Move {
	dir, startRow, lastRow := 1, 2, 8
	if color == Black {
		dir, startRow, lastRow = -1, 7, 1
	}
	var moves []Move
	add := func(to Square) {
		if to.Row == lastRow {
			for _, k := range PromotionKinds {
				moves = append(moves, Move{Start: from, End: to, Promotion: k})
			}
			return
		}
		moves = append(moves, Move{Start: from, End: to})
	}

	one := from.Offset(dir, 0)
	if one.Valid() && b.Empty(one) {
		add(one)
		two := from.Offset(2*dir, 0)
		if from.Row == startRow && b.Empty(two) {
			add(two)
		}
	}
	for _, dc := range []int{-1, 1} {
		to := from.Offset(dir, dc)
		if !to.Valid() {
			continue
		}
		if occ, ok := b.Get(to); ok && occ.Color != color {
			add(to)
		}
	}
	return moves
}
