package hub

import (
	"github.com/park285/cheese-chess-hub/internal/chess"
	"github.com/park285/cheese-chess-hub/internal/match"
	"github.com/park285/cheese-chess-hub/pkg/chessdto"
)

type verdictKind int

const (
	verdictNone verdictKind = iota
	verdictCheckmate
	verdictStalemate
	verdictCheck
)

// verdict names the first terminal condition found and the side it concerns.
type verdict struct {
	kind  verdictKind
	color chess.Color
}

var sides = []chess.Color{chess.White, chess.Black}

// evaluate checks, in order: White mate, Black mate, White or Black stalemate,
// White check, Black check. A mover that leaves itself without a legal move
// is stalemated too.
func evaluate(g *chess.Game) verdict {
	for _, c := range sides {
		if g.IsInCheckmate(c) {
			return verdict{kind: verdictCheckmate, color: c}
		}
	}
	for _, c := range sides {
		if g.IsInStalemate(c) {
			return verdict{kind: verdictStalemate, color: c}
		}
	}
	for _, c := range sides {
		if g.IsInCheck(c) {
			return verdict{kind: verdictCheck, color: c}
		}
	}
	return verdict{kind: verdictNone}
}

func (h *Hub) verdictNotice(v verdict) (chessdto.ServerMessage, bool) {
	team := match.TeamOf(v.color)
	switch v.kind {
	case verdictCheckmate:
		return h.notice("notice.checkmate", map[string]string{
			"Team": team.DisplayName(), "Winner": team.Opponent().DisplayName(),
		}), true
	case verdictStalemate:
		return h.notice("notice.stalemate", nil), true
	case verdictCheck:
		return h.notice("notice.check", map[string]string{"Team": team.DisplayName()}), true
	default:
		return chessdto.ServerMessage{}, false
	}
}
