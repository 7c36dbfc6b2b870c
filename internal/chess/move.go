package chess

import (
	"errors"
	"fmt"
	"strings"
)

// Move is a (start, end, promotion) triple compared by value.
// Promotion is NoKind unless a pawn reaches its last rank.
type Move struct {
	Start     Square
	End       Square
	Promotion Kind
}

// String renders the move in UCI long algebraic form, e.g. "e2e4" or "e7e8q".
func (m Move) String() string {
	s := m.Start.String() + m.End.String()
	if m.Promotion != NoKind {
		s += string(kindLetters[m.Promotion])
	}
	return s
}

// ParseMove reads UCI long algebraic notation.
func ParseMove(text string) (Move, error) {
	text = strings.TrimSpace(text)
	if len(text) != 4 && len(text) != 5 {
		return Move{}, fmt.Errorf("invalid move %q", text)
	}
	start, err := ParseSquare(text[0:2])
	if err != nil {
		return Move{}, err
	}
	end, err := ParseSquare(text[2:4])
	if err != nil {
		return Move{}, err
	}
	m := Move{Start: start, End: end}
	if len(text) == 5 {
		k, ok := kindFromLetter(text[4])
		if !ok || k == King || k == Pawn {
			return Move{}, fmt.Errorf("invalid promotion in %q", text)
		}
		m.Promotion = k
	}
	return m, nil
}

func containsMove(moves []Move, m Move) bool {
	for _, candidate := range moves {
		if candidate == m {
			return true
		}
	}
	return false
}

// ErrIllegalMove matches every IllegalMoveError via errors.Is.
var ErrIllegalMove = errors.New("illegal move")

// IllegalMoveError reports why MakeMove refused a move.
type IllegalMoveError struct {
	Move   Move
	Reason string
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move %s: %s", e.Move, e.Reason)
}

func (e *IllegalMoveError) Is(target error) bool { return target == ErrIllegalMove }
