// Package archive keeps finished matches in PostgreSQL together with a PGN transcript.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-hub/internal/match"
	"github.com/park285/cheese-chess-hub/internal/obslog"
)

const schema = `CREATE TABLE IF NOT EXISTS match_results (
    match_id    INTEGER PRIMARY KEY,
    match_name  TEXT NOT NULL,
    white_name  TEXT NOT NULL DEFAULT '',
    black_name  TEXT NOT NULL DEFAULT '',
    result      TEXT NOT NULL,
    reason      TEXT NOT NULL,
    moves_uci   JSONB NOT NULL,
    pgn         TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL
)`

// Repository writes one row per completed match.
type Repository struct {
	db *sql.DB
}

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("ARCHIVE_DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts the final state of rec. Records that are not Complete are ignored.
func (r *Repository) SaveResult(ctx context.Context, rec *match.Record) error {
	if r == nil || r.db == nil || rec == nil || !rec.Complete() {
		return nil
	}
	result := resultToken(rec.Winner)
	pgn, err := BuildPGN(rec)
	if err != nil {
		// keep the row; the UCI log is still authoritative
		obslog.L().Warn("archive_pgn_failed", zap.Int("match_id", rec.ID), zap.Error(err))
	}
	movesRaw, err := json.Marshal(movesOrEmpty(rec.Moves))
	if err != nil {
		return fmt.Errorf("encode moves: %w", err)
	}
	duration := rec.UpdatedAt.Sub(rec.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO match_results (
        match_id, match_name, white_name, black_name,
        result, reason, moves_uci, pgn,
        started_at, ended_at, duration_ms
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
      ON CONFLICT (match_id) DO UPDATE SET
        match_name=EXCLUDED.match_name,
        white_name=EXCLUDED.white_name,
        black_name=EXCLUDED.black_name,
        result=EXCLUDED.result,
        reason=EXCLUDED.reason,
        moves_uci=EXCLUDED.moves_uci,
        pgn=EXCLUDED.pgn,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	if _, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.Name, rec.WhiteUsername, rec.BlackUsername,
		result, rec.Reason, string(movesRaw), pgn,
		rec.CreatedAt, rec.UpdatedAt, duration,
	); err != nil {
		return fmt.Errorf("save result %d: %w", rec.ID, err)
	}
	obslog.L().Info("archive_saved", zap.Int("match_id", rec.ID), zap.String("result", result), zap.String("reason", rec.Reason))
	return nil
}

func resultToken(winner match.Team) string {
	switch winner {
	case match.TeamWhite:
		return "white"
	case match.TeamBlack:
		return "black"
	default:
		return "draw"
	}
}

func movesOrEmpty(m []string) []string {
	if m == nil {
		return []string{}
	}
	return m
}
