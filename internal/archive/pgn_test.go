package archive

import (
	"context"
	"strings"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-chess-hub/internal/chess"
	"github.com/park285/cheese-chess-hub/internal/match"
)

// playLog applies moves to our own engine, so the log fed to the PGN builder
// is exactly what the hub would have recorded.
func playLog(t *testing.T, moves ...string) *match.Record {
	t.Helper()
	rec := match.New("archive test", time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC))
	rec.WhiteUsername, rec.BlackUsername = "alice", "bob"
	for _, s := range moves {
		m, err := chess.ParseMove(s)
		require.NoError(t, err)
		require.NoError(t, rec.Game.MakeMove(m), s)
		rec.Moves = append(rec.Moves, m.String())
	}
	rec.UpdatedAt = rec.CreatedAt.Add(90 * time.Second)
	return rec
}

func TestBuildPGNFoolsMate(t *testing.T) {
	rec := playLog(t, "f2f3", "e7e5", "g2g4", "d8h4")
	require.True(t, rec.Game.IsInCheckmate(chess.White))
	rec.Finish(match.TeamBlack, match.ReasonCheckmate)

	pgn, err := BuildPGN(rec)
	require.NoError(t, err)
	assert.Contains(t, pgn, "[Event \"archive test\"]")
	assert.Contains(t, pgn, "[Date \"2024.03.09\"]")
	assert.Contains(t, pgn, "[White \"alice\"]")
	assert.Contains(t, pgn, "[Black \"bob\"]")
	assert.Contains(t, pgn, "[Termination \"checkmate\"]")
	assert.Contains(t, pgn, "[Result \"0-1\"]")
	assert.Contains(t, pgn, "1. f3 e5 2. g4 Qh4")
	assert.True(t, strings.HasSuffix(pgn, "0-1"))

	_, game, err := Replay(rec.Moves)
	require.NoError(t, err)
	assert.Equal(t, nchess.BlackWon, game.Outcome())
}

func TestBuildPGNPromotionAndCastling(t *testing.T) {
	rec := playLog(t,
		"e2e4", "d7d5", "g1f3", "d5e4", "f1c4", "e4f3", "e1g1", "f3g2", "d2d3", "g2f1q",
	)
	rec.Finish(match.TeamBlack, match.ReasonResignation)

	pgn, err := BuildPGN(rec)
	require.NoError(t, err)
	assert.Contains(t, pgn, "4. O-O")
	assert.Contains(t, pgn, "gxf1=Q")
	assert.Contains(t, pgn, "[Result \"0-1\"]")
}

func TestBuildPGNStalemateIsDraw(t *testing.T) {
	rec := playLog(t, "e2e4")
	rec.Finish(match.TeamNone, match.ReasonStalemate)
	pgn, err := BuildPGN(rec)
	require.NoError(t, err)
	assert.Contains(t, pgn, "[Result \"1/2-1/2\"]")
	assert.Equal(t, "draw", resultToken(rec.Winner))
}

func TestBuildPGNUnfinishedAndBadLog(t *testing.T) {
	rec := playLog(t, "e2e4", "e7e5")
	pgn, err := BuildPGN(rec)
	require.NoError(t, err)
	assert.Contains(t, pgn, "[Result \"*\"]")
	assert.NotContains(t, pgn, "Termination")

	rec.Moves = append(rec.Moves, "a1a8")
	pgn, err = BuildPGN(rec)
	assert.Error(t, err)
	assert.Contains(t, pgn, "1. e4 e5")
}

func TestSanitizePGN(t *testing.T) {
	assert.Equal(t, "say 'hi'", sanitizePGN(` say "hi" `))
	assert.Equal(t, "a b", sanitizePGN(`a\b`))
}

func TestSaveResultNilRepository(t *testing.T) {
	var r *Repository
	assert.NoError(t, r.SaveResult(context.Background(), playLog(t)))
	assert.NoError(t, r.Close())
}
