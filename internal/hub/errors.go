package hub

import (
	"errors"
	"fmt"

	"github.com/park285/cheese-chess-hub/internal/chess"
	"github.com/park285/cheese-chess-hub/internal/match"
	"github.com/park285/cheese-chess-hub/pkg/chessdto"
)

// noticeError is a refused request that only earns the caller a notice.
type noticeError struct{ key string }

func notice(key string) error { return &noticeError{key: key} }

func (e *noticeError) Error() string { return "invalid request: " + e.key }

func (e *noticeError) Unwrap() error { return match.ErrInvalidRequest }

// errorKey picks the catalog entry reported to the caller for err.
func errorKey(err error) string {
	var ne *noticeError
	switch {
	case errors.As(err, &ne):
		return ne.key
	case errors.Is(err, chess.ErrIllegalMove):
		return "error.illegal_move"
	case errors.Is(err, match.ErrUnauthorized):
		return "error.unauthorized"
	case errors.Is(err, match.ErrNotFound):
		return "error.not_found"
	case errors.Is(err, match.ErrInvalidRequest):
		return "error.bad_request"
	default:
		return "error.data_access"
	}
}

func requestFromCommand(cmd chessdto.Command) (Request, error) {
	req := Request{
		AuthToken: cmd.AuthToken,
		MatchID:   cmd.GameID,
		Team:      match.ParseTeam(cmd.Team),
	}
	if cmd.Move != nil {
		m, err := moveFromDTO(*cmd.Move)
		if err != nil {
			return req, err
		}
		req.Move = m
	}
	return req, nil
}

func moveFromDTO(m chessdto.Move) (chess.Move, error) {
	out := chess.Move{
		Start: chess.Sq(m.StartPosition.Row, m.StartPosition.Col),
		End:   chess.Sq(m.EndPosition.Row, m.EndPosition.Col),
	}
	if !out.Start.Valid() || !out.End.Valid() {
		return out, fmt.Errorf("%w: square off the board", match.ErrInvalidRequest)
	}
	if err := out.Promotion.UnmarshalText([]byte(m.PromotionPiece)); err != nil {
		return out, fmt.Errorf("%w: %v", match.ErrInvalidRequest, err)
	}
	return out, nil
}

// MoveToDTO is the inverse of the command decoding, used by clients.
func MoveToDTO(m chess.Move) chessdto.Move {
	return chessdto.Move{
		StartPosition:  chessdto.Position{Row: m.Start.Row, Col: m.Start.Col},
		EndPosition:    chessdto.Position{Row: m.End.Row, Col: m.End.Col},
		PromotionPiece: m.Promotion.String(),
	}
}
