package chess

import (
	"encoding/json"
	"fmt"
)

// Side is a castling direction.
type Side int8

const (
	Kingside Side = iota
	Queenside
)

func (s Side) String() string {
	if s == Queenside {
		return "queenside"
	}
	return "kingside"
}

// CastlingRights holds the four independent flags. Once a flag is cleared it stays cleared.
type CastlingRights struct {
	WhiteKingside  bool `json:"whiteKingside"`
	WhiteQueenside bool `json:"whiteQueenside"`
	BlackKingside  bool `json:"blackKingside"`
	BlackQueenside bool `json:"blackQueenside"`
}

func AllCastlingRights() CastlingRights {
	return CastlingRights{WhiteKingside: true, WhiteQueenside: true, BlackKingside: true, BlackQueenside: true}
}

func (r CastlingRights) Has(color Color, side Side) bool {
	switch {
	case color == White && side == Kingside:
		return r.WhiteKingside
	case color == White:
		return r.WhiteQueenside
	case side == Kingside:
		return r.BlackKingside
	default:
		return r.BlackQueenside
	}
}

func (r *CastlingRights) clear(color Color, side Side) {
	switch {
	case color == White && side == Kingside:
		r.WhiteKingside = false
	case color == White:
		r.WhiteQueenside = false
	case side == Kingside:
		r.BlackKingside = false
	default:
		r.BlackQueenside = false
	}
}

// castle geometry: king from column 5, rook from rookCol to rookTo, king lands on kingTo.
type castleLane struct {
	rookCol  int
	kingTo   int
	rookTo   int
	between  []int
	transits []int
}

var lanes = map[Side]castleLane{
	Kingside:  {rookCol: 8, kingTo: 7, rookTo: 6, between: []int{6, 7}, transits: []int{6, 7}},
	Queenside: {rookCol: 1, kingTo: 3, rookTo: 4, between: []int{4, 3, 2}, transits: []int{4, 3}},
}

const kingHomeCol = 5

// Game is the rules engine: a board, the side to move and castling rights.
// A Game is not safe for concurrent use.
type Game struct {
	board  Board
	turn   Color
	rights CastlingRights
}

// NewGame returns the opening position with White to move.
func NewGame() *Game {
	return &Game{board: NewBoard(), turn: White, rights: AllCastlingRights()}
}

// NewGameFromPosition restores a game from a saved position.
func NewGameFromPosition(board Board, turn Color, rights CastlingRights) *Game {
	return &Game{board: board, turn: turn, rights: rights}
}

// Board returns a copy of the current board.
func (g *Game) Board() Board { return g.board }

func (g *Game) Turn() Color { return g.turn }

func (g *Game) CastlingRights() CastlingRights { return g.rights }

func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	cp := *g
	return &cp
}

// ValidMoves returns the legal moves of the piece on sq, or nil if sq is empty.
// Legality is judged for the piece's own color regardless of whose turn it is.
func (g *Game) ValidMoves(sq Square) []Move {
	if !sq.Valid() {
		return nil
	}
	p, ok := g.board.Get(sq)
	if !ok {
		return nil
	}
	var legal []Move
	for _, m := range p.PseudoMoves(&g.board, sq) {
		if !leavesKingAttacked(g.board, m, p.Color) {
			legal = append(legal, m)
		}
	}
	if p.Kind == King {
		for _, side := range []Side{Kingside, Queenside} {
			if g.CanCastle(p.Color, side) {
				legal = append(legal, Move{Start: sq, End: Sq(sq.Row, lanes[side].kingTo)})
			}
		}
	}
	return legal
}

// CanCastle reports whether color may castle toward side right now.
func (g *Game) CanCastle(color Color, side Side) bool {
	if !g.rights.Has(color, side) {
		return false
	}
	lane := lanes[side]
	row := color.homeRow()
	king := Sq(row, kingHomeCol)
	if p, ok := g.board.Get(king); !ok || p != (Piece{Color: color, Kind: King}) {
		return false
	}
	if p, ok := g.board.Get(Sq(row, lane.rookCol)); !ok || p != (Piece{Color: color, Kind: Rook}) {
		return false
	}
	if g.IsInCheck(color) {
		return false
	}
	for _, col := range lane.between {
		if !g.board.Empty(Sq(row, col)) {
			return false
		}
	}
	for _, col := range lane.transits {
		if leavesKingAttacked(g.board, Move{Start: king, End: Sq(row, col)}, color) {
			return false
		}
	}
	return true
}

// MakeMove validates and applies m for the side to move.
func (g *Game) MakeMove(m Move) error {
	if !m.Start.Valid() || !m.End.Valid() {
		return &IllegalMoveError{Move: m, Reason: "square off the board"}
	}
	p, ok := g.board.Get(m.Start)
	if !ok {
		return &IllegalMoveError{Move: m, Reason: "no piece on start square"}
	}
	if p.Color != g.turn {
		return &IllegalMoveError{Move: m, Reason: "piece does not belong to the side to move"}
	}
	if !containsMove(g.ValidMoves(m.Start), m) {
		return &IllegalMoveError{Move: m, Reason: "not a legal move for this piece"}
	}

	if side, castle := castleSide(p, m); castle {
		lane := lanes[side]
		row := m.Start.Row
		g.board.Remove(m.Start)
		g.board.Remove(Sq(row, lane.rookCol))
		g.board.Place(m.End, p)
		g.board.Place(Sq(row, lane.rookTo), Piece{Color: p.Color, Kind: Rook})
	} else {
		g.board = applyMove(g.board, m)
	}
	g.updateRights(p, m)
	g.turn = g.turn.Opponent()
	return nil
}

func (g *Game) updateRights(p Piece, m Move) {
	switch p.Kind {
	case King:
		g.rights.clear(p.Color, Kingside)
		g.rights.clear(p.Color, Queenside)
	case Rook:
		clearRookRight(&g.rights, p.Color, m.Start)
	}
	// A rook captured on its home square takes the opponent's right with it.
	clearRookRight(&g.rights, p.Color.Opponent(), m.End)
}

func clearRookRight(r *CastlingRights, color Color, sq Square) {
	if sq.Row != color.homeRow() {
		return
	}
	for side, lane := range lanes {
		if sq.Col == lane.rookCol {
			r.clear(color, side)
		}
	}
}

// castleSide recognises a castling move: a king leaving its home square by two columns.
func castleSide(p Piece, m Move) (Side, bool) {
	if p.Kind != King || m.Start != Sq(p.Color.homeRow(), kingHomeCol) || m.End.Row != m.Start.Row {
		return Kingside, false
	}
	switch m.End.Col {
	case lanes[Kingside].kingTo:
		return Kingside, true
	case lanes[Queenside].kingTo:
		return Queenside, true
	}
	return Kingside, false
}

// IsInCheck reports whether any opposing piece attacks color's king.
func (g *Game) IsInCheck(color Color) bool {
	return inCheck(&g.board, color)
}

func (g *Game) IsInCheckmate(color Color) bool {
	return g.IsInCheck(color) && !g.HasAnyLegalMove(color)
}

func (g *Game) IsInStalemate(color Color) bool {
	return !g.IsInCheck(color) && !g.HasAnyLegalMove(color)
}

// HasAnyLegalMove reports whether any piece of color has at least one legal move.
func (g *Game) HasAnyLegalMove(color Color) bool {
	found := false
	g.board.Each(func(sq Square, p Piece) {
		if found || p.Color != color {
			return
		}
		found = len(g.ValidMoves(sq)) > 0
	})
	return found
}

// LegalMoves is the union of ValidMoves over every piece of color.
func (g *Game) LegalMoves(color Color) []Move {
	var all []Move
	g.board.Each(func(sq Square, p Piece) {
		if p.Color == color {
			all = append(all, g.ValidMoves(sq)...)
		}
	})
	return all
}

// applyMove relocates the moving piece on a copy of b, promoting if requested.
func applyMove(b Board, m Move) Board {
	p, _ := b.Get(m.Start)
	if m.Promotion != NoKind {
		p = Piece{Color: p.Color, Kind: m.Promotion}
	}
	b.Remove(m.Start)
	b.Place(m.End, p)
	return b
}

// leavesKingAttacked plays m on a scratch copy and tests color's king.
func leavesKingAttacked(b Board, m Move, color Color) bool {
	ghost := applyMove(b, m)
	return inCheck(&ghost, color)
}

func inCheck(b *Board, color Color) bool {
	king, ok := b.KingSquare(color)
	if !ok {
		return false
	}
	attacked := false
	b.Each(func(sq Square, p Piece) {
		if attacked || p.Color == color {
			return
		}
		for _, m := range p.PseudoMoves(b, sq) {
			if m.End == king {
				attacked = true
				return
			}
		}
	})
	return attacked
}

type gameJSON struct {
	Board    Board          `json:"board"`
	Turn     Color          `json:"turn"`
	Castling CastlingRights `json:"castling"`
}

func (g *Game) MarshalJSON() ([]byte, error) {
	return json.Marshal(gameJSON{Board: g.board, Turn: g.turn, Castling: g.rights})
}

func (g *Game) UnmarshalJSON(data []byte) error {
	var raw gameJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode game: %w", err)
	}
	*g = Game{board: raw.Board, turn: raw.Turn, rights: raw.Castling}
	return nil
}
