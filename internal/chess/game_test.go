package chess

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// positionFromFEN builds a game from the placement, turn and castling fields of a FEN string.
func positionFromFEN(t *testing.T, fen string) *Game {
	t.Helper()
	fields := strings.Fields(fen)
	if len(fields) < 3 {
		t.Fatalf("short fen %q", fen)
	}
	var b Board
	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		t.Fatalf("fen needs 8 ranks: %q", fen)
	}
	for i, rank := range ranks {
		row := 8 - i
		col := 1
		for _, ch := range rank {
			if ch >= '1' && ch <= '8' {
				col += int(ch - '0')
				continue
			}
			kind, ok := kindFromLetter(byte(ch))
			if !ok {
				t.Fatalf("bad piece %q in %q", ch, fen)
			}
			color := White
			if ch >= 'a' {
				color = Black
			}
			b.Place(Sq(row, col), Piece{Color: color, Kind: kind})
			col++
		}
	}
	turn := White
	if fields[1] == "b" {
		turn = Black
	}
	rights := CastlingRights{
		WhiteKingside:  strings.Contains(fields[2], "K"),
		WhiteQueenside: strings.Contains(fields[2], "Q"),
		BlackKingside:  strings.Contains(fields[2], "k"),
		BlackQueenside: strings.Contains(fields[2], "q"),
	}
	return NewGameFromPosition(b, turn, rights)
}

func mustMove(t *testing.T, g *Game, uci string) {
	t.Helper()
	m, err := ParseMove(uci)
	if err != nil {
		t.Fatalf("parse %s: %v", uci, err)
	}
	if err := g.MakeMove(m); err != nil {
		t.Fatalf("move %s: %v\n%s", uci, err, boardString(g))
	}
}

func boardString(g *Game) string {
	b := g.Board()
	return b.String()
}

func perft(g *Game, depth int) int {
	moves := g.LegalMoves(g.Turn())
	if depth == 1 {
		return len(moves)
	}
	nodes := 0
	for _, m := range moves {
		next := g.Clone()
		if err := next.MakeMove(m); err != nil {
			panic(err)
		}
		nodes += perft(next, depth-1)
	}
	return nodes
}

func TestNewBoardLayout(t *testing.T) {
	b := NewBoard()
	want := []string{
		"RNBQKBNR",
		"PPPPPPPP",
		"........",
		"........",
		"........",
		"........",
		"pppppppp",
		"rnbqkbnr",
	}
	if diff := cmp.Diff(want, b.Rows()); diff != "" {
		t.Fatalf("opening layout mismatch (-want +got):\n%s", diff)
	}
}

func TestPawnDoublePushFlipsTurn(t *testing.T) {
	g := NewGame()
	if err := g.MakeMove(Move{Start: Sq(2, 5), End: Sq(4, 5)}); err != nil {
		t.Fatalf("e2e4: %v", err)
	}
	if g.Turn() != Black {
		t.Fatalf("turn = %s, want BLACK", g.Turn())
	}
	b := g.Board()
	if p, ok := b.Get(Sq(4, 5)); !ok || p != (Piece{Color: White, Kind: Pawn}) {
		t.Fatalf("e4 holds %v", p)
	}
	if !b.Empty(Sq(2, 5)) {
		t.Fatalf("e2 should be empty")
	}
}

func TestMakeMoveRejections(t *testing.T) {
	tests := []struct {
		name string
		move string
	}{
		{"wrong side", "e7e5"},
		{"empty square", "e4e5"},
		{"blocked pawn", "e1e2"},
		{"knight geometry", "g1g3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGame()
			m, err := ParseMove(tt.move)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			err = g.MakeMove(m)
			if !errors.Is(err, ErrIllegalMove) {
				t.Fatalf("err = %v, want ErrIllegalMove", err)
			}
			var ime *IllegalMoveError
			if !errors.As(err, &ime) || ime.Move != m {
				t.Fatalf("err = %#v, want IllegalMoveError for %s", err, m)
			}
			if g.Turn() != White {
				t.Fatalf("turn changed after rejected move")
			}
			after := g.Board()
			fresh := NewBoard()
			if !after.Equal(&fresh) {
				t.Fatalf("board changed after rejected move:\n%s", after.String())
			}
		})
	}
}

func TestKingsideCastleRelocatesRook(t *testing.T) {
	g := positionFromFEN(t, "4k3/8/8/8/8/8/8/R3K2R w KQ - 0 1")
	if !g.CanCastle(White, Kingside) {
		t.Fatalf("expected kingside castling to be available")
	}
	if !containsMove(g.ValidMoves(Sq(1, 5)), Move{Start: Sq(1, 5), End: Sq(1, 7)}) {
		t.Fatalf("castle missing from king moves")
	}
	mustMove(t, g, "e1g1")

	b := g.Board()
	want := []string{"R....RK.", "........", "........", "........", "........", "........", "........", "....k..."}
	if diff := cmp.Diff(want, b.Rows()); diff != "" {
		t.Fatalf("after O-O (-want +got):\n%s", diff)
	}
	rights := g.CastlingRights()
	if rights.WhiteKingside || rights.WhiteQueenside {
		t.Fatalf("white rights should be cleared: %+v", rights)
	}
}

func TestQueensideCastleRelocatesRook(t *testing.T) {
	g := positionFromFEN(t, "r3k3/8/8/8/8/8/8/4K3 b q - 0 1")
	mustMove(t, g, "e8c8")
	b := g.Board()
	if diff := cmp.Diff("..kr....", b.Rows()[7]); diff != "" {
		t.Fatalf("after O-O-O (-want +got):\n%s", diff)
	}
}

func TestCastleBlockedWhenTransitAttacked(t *testing.T) {
	// Black rook on f8 covers f1.
	g := positionFromFEN(t, "4kr2/8/8/8/8/8/8/R3K2R w KQ - 0 1")
	if g.CanCastle(White, Kingside) {
		t.Fatalf("kingside castle through attacked f1 should be refused")
	}
	if !g.CanCastle(White, Queenside) {
		t.Fatalf("queenside should still be available")
	}
	m := Move{Start: Sq(1, 5), End: Sq(1, 7)}
	if err := g.MakeMove(m); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("castling through check: err = %v", err)
	}
}

func TestCastleRefusedWhenInCheckOrBlocked(t *testing.T) {
	inCheck := positionFromFEN(t, "4k3/8/8/8/8/8/4r3/R3K2R w KQ - 0 1")
	if inCheck.CanCastle(White, Kingside) || inCheck.CanCastle(White, Queenside) {
		t.Fatalf("castling out of check should be refused")
	}
	blocked := positionFromFEN(t, "4k3/8/8/8/8/8/8/RN2K1NR w KQ - 0 1")
	if blocked.CanCastle(White, Kingside) || blocked.CanCastle(White, Queenside) {
		t.Fatalf("castling through pieces should be refused")
	}
}

func TestCastlingRightsNeverReturn(t *testing.T) {
	g := positionFromFEN(t, "4k3/8/8/8/8/8/8/R3K2R w KQ - 0 1")
	mustMove(t, g, "h1h2")
	mustMove(t, g, "e8d8")
	mustMove(t, g, "h2h1")
	mustMove(t, g, "d8e8")
	if g.CanCastle(White, Kingside) {
		t.Fatalf("kingside right must stay cleared after the rook returns")
	}
	if !g.CanCastle(White, Queenside) {
		t.Fatalf("queenside right should be untouched")
	}

	mustMove(t, g, "e1f1")
	mustMove(t, g, "e8d8")
	mustMove(t, g, "f1e1")
	mustMove(t, g, "d8e8")
	if g.CanCastle(White, Queenside) {
		t.Fatalf("king move must clear both rights")
	}
}

func TestCapturingHomeRookClearsRight(t *testing.T) {
	g := positionFromFEN(t, "r3k2r/8/8/8/8/8/8/4K2R w Kkq - 0 1")
	mustMove(t, g, "h1h8")
	rights := g.CastlingRights()
	if rights.BlackKingside {
		t.Fatalf("black kingside right should die with the h8 rook")
	}
	if !rights.BlackQueenside {
		t.Fatalf("black queenside right should survive")
	}
}

func TestPromotionRequiresKind(t *testing.T) {
	g := positionFromFEN(t, "7k/P7/8/8/8/8/8/4K3 w - - 0 1")
	want := []Move{
		{Start: Sq(7, 1), End: Sq(8, 1), Promotion: Queen},
		{Start: Sq(7, 1), End: Sq(8, 1), Promotion: Rook},
		{Start: Sq(7, 1), End: Sq(8, 1), Promotion: Bishop},
		{Start: Sq(7, 1), End: Sq(8, 1), Promotion: Knight},
	}
	if diff := cmp.Diff(want, g.ValidMoves(Sq(7, 1))); diff != "" {
		t.Fatalf("promotion moves (-want +got):\n%s", diff)
	}
	if err := g.MakeMove(Move{Start: Sq(7, 1), End: Sq(8, 1)}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("bare promotion push: err = %v", err)
	}
	mustMove(t, g, "a7a8n")
	b := g.Board()
	if p, _ := b.Get(Sq(8, 1)); p != (Piece{Color: White, Kind: Knight}) {
		t.Fatalf("a8 holds %v, want white knight", p)
	}
}

func TestBlackPromotionByCapture(t *testing.T) {
	g := positionFromFEN(t, "4k3/8/8/8/8/8/1p6/R3K3 b - - 0 1")
	if err := g.MakeMove(Move{Start: Sq(2, 2), End: Sq(1, 1)}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("capture without promotion kind: err = %v", err)
	}
	mustMove(t, g, "b2a1q")
	b := g.Board()
	if p, _ := b.Get(Sq(1, 1)); p != (Piece{Color: Black, Kind: Queen}) {
		t.Fatalf("a1 holds %v, want black queen", p)
	}
	if !g.IsInCheck(White) {
		t.Fatalf("new queen on a1 should check e1")
	}
}

func TestPinnedPieceCannotMove(t *testing.T) {
	g := positionFromFEN(t, "4k3/4r3/8/8/8/8/4B3/4K3 w - - 0 1")
	for _, m := range g.ValidMoves(Sq(2, 5)) {
		t.Fatalf("pinned bishop has move %s", m)
	}
}

func TestFoolsMate(t *testing.T) {
	g := NewGame()
	for _, uci := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		mustMove(t, g, uci)
	}
	if !g.IsInCheck(White) {
		t.Fatalf("white should be in check")
	}
	if !g.IsInCheckmate(White) {
		t.Fatalf("white should be mated\n%s", boardString(g))
	}
	if g.IsInStalemate(White) {
		t.Fatalf("mate and stalemate are exclusive")
	}
	if g.IsInCheckmate(Black) || g.IsInCheck(Black) {
		t.Fatalf("black is not in check")
	}
}

func TestStalemate(t *testing.T) {
	g := positionFromFEN(t, "k7/8/1Q6/8/8/8/8/2K5 b - - 0 1")
	if !g.IsInStalemate(Black) {
		t.Fatalf("black should be stalemated")
	}
	if g.IsInCheckmate(Black) || g.HasAnyLegalMove(Black) {
		t.Fatalf("stalemate requires no legal move and no check")
	}
}

func TestIsInCheckWithoutKing(t *testing.T) {
	g := positionFromFEN(t, "8/8/8/8/8/8/8/R7 w - - 0 1")
	if g.IsInCheck(White) || g.IsInCheck(Black) {
		t.Fatalf("a side without a king is never in check")
	}
}

func TestValidMovesNeverExposeKing(t *testing.T) {
	positions := []string{
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	}
	for _, fen := range positions {
		root := positionFromFEN(t, fen)
		for _, first := range root.LegalMoves(root.Turn()) {
			g := root.Clone()
			if err := g.MakeMove(first); err != nil {
				t.Fatalf("%s: %v", first, err)
			}
			mover := g.Turn()
			for _, m := range g.LegalMoves(mover) {
				next := g.Clone()
				if err := next.MakeMove(m); err != nil {
					t.Fatalf("%s %s: %v", first, m, err)
				}
				if next.IsInCheck(mover) {
					t.Fatalf("%s %s leaves %s in check", first, m, mover)
				}
			}
		}
	}
}

func TestPerft(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		depth int
		nodes int
	}{
		{"start d1", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 1, 20},
		{"start d2", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 2, 400},
		{"start d3", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 3, 8902},
		{"kiwipete d1", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1", 1, 48},
		{"endgame d2", "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1", 2, 191},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.depth > 2 && testing.Short() {
				t.Skip("deep perft")
			}
			if got := perft(positionFromFEN(t, tt.fen), tt.depth); got != tt.nodes {
				t.Fatalf("perft(%d) = %d, want %d", tt.depth, got, tt.nodes)
			}
		})
	}
}

func TestGameJSONKeepsCastlingRights(t *testing.T) {
	g := positionFromFEN(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	mustMove(t, g, "a1a2")
	raw, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restored Game
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(g.CastlingRights(), restored.CastlingRights()); diff != "" {
		t.Fatalf("rights (-want +got):\n%s", diff)
	}
	if restored.Turn() != Black {
		t.Fatalf("turn = %s", restored.Turn())
	}
	want, got := g.Board(), restored.Board()
	if !want.Equal(&got) {
		t.Fatalf("board mismatch:\n%s\n%s", want.String(), got.String())
	}
	if !strings.Contains(string(raw), `"turn":"BLACK"`) {
		t.Fatalf("unexpected encoding %s", raw)
	}
}

func TestMoveNotation(t *testing.T) {
	m, err := ParseMove("E7E8Q")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff(Move{Start: Sq(7, 5), End: Sq(8, 5), Promotion: Queen}, m); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if m.String() != "e7e8q" {
		t.Fatalf("String() = %q", m.String())
	}
	if Sq(2, 5).Label() != "E2" {
		t.Fatalf("Label() = %q", Sq(2, 5).Label())
	}
	for _, bad := range []string{"", "e9e4", "i2i4", "e7e8k", "e2"} {
		if _, err := ParseMove(bad); err == nil {
			t.Fatalf("ParseMove(%q) should fail", bad)
		}
	}
}
