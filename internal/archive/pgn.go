package archive

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-chess-hub/internal/match"
)

// Replay plays a UCI move log from the opening position and returns the SAN
// for each move along with the final game.
func Replay(moves []string) ([]string, *nchess.Game, error) {
	game := nchess.NewGame()
	sans := make([]string, 0, len(moves))
	for i, raw := range moves {
		uci := strings.ToLower(strings.TrimSpace(raw))
		pos := game.Position()
		mv, err := nchess.UCINotation{}.Decode(pos, uci)
		if err != nil {
			return sans, game, fmt.Errorf("move %d %q: %w", i+1, raw, err)
		}
		if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			return sans, game, fmt.Errorf("move %d %q: %w", i+1, raw, err)
		}
		sans = append(sans, nchess.AlgebraicNotation{}.Encode(pos, mv))
	}
	return sans, game, nil
}

// BuildPGN renders rec as a PGN game. On a replay error the moves that did
// replay are still written.
func BuildPGN(rec *match.Record) (string, error) {
	if rec == nil {
		return "", nil
	}
	sans, _, replayErr := Replay(rec.Moves)
	pgnResult := mapResultToPGN(rec)

	date := rec.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"" + sanitizePGN(rec.Name) + "\"]\n")
	b.WriteString("[Site \"cheese-chess-hub\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(rec.WhiteUsername))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(rec.BlackUsername))
	if rec.Reason != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(rec.Reason))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", pgnResult)

	for i := 0; i < len(sans); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, sans[i])
		if i+1 < len(sans) {
			b.WriteString(" " + sans[i+1])
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String(), replayErr
}

func mapResultToPGN(rec *match.Record) string {
	if !rec.Complete() {
		return "*"
	}
	switch rec.Winner {
	case match.TeamWhite:
		return "1-0"
	case match.TeamBlack:
		return "0-1"
	default:
		return "1/2-1/2"
	}
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
