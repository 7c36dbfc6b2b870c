package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-chess-hub/internal/chess"
	"github.com/park285/cheese-chess-hub/internal/match"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS chess_matches (
	id             SERIAL PRIMARY KEY,
	white_username TEXT,
	black_username TEXT,
	name           TEXT NOT NULL,
	game           JSONB NOT NULL,
	state          TEXT NOT NULL,
	moves          JSONB NOT NULL DEFAULT '[]',
	winner         TEXT NOT NULL DEFAULT '',
	reason         TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS chess_identities (
	token    TEXT PRIMARY KEY,
	username TEXT NOT NULL
);`

// Postgres keeps records in the chess_matches table; the game snapshot is stored as JSONB.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

const selectMatch = `SELECT id, COALESCE(white_username, ''), COALESCE(black_username, ''), name,
	game, state, moves, winner, reason, created_at, updated_at FROM chess_matches`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*match.Record, error) {
	var (
		rec   match.Record
		game  []byte
		moves []byte
		state string
		win   string
	)
	err := row.Scan(&rec.ID, &rec.WhiteUsername, &rec.BlackUsername, &rec.Name,
		&game, &state, &moves, &win, &rec.Reason, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Game = new(chess.Game)
	if err := json.Unmarshal(game, rec.Game); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	if err := json.Unmarshal(moves, &rec.Moves); err != nil {
		return nil, fmt.Errorf("decode moves: %w", err)
	}
	rec.State = match.State(state)
	rec.Winner = match.Team(win)
	return &rec, nil
}

func encodeColumns(rec *match.Record) (game, moves []byte, err error) {
	g := rec.Game
	if g == nil {
		g = chess.NewGame()
	}
	if game, err = json.Marshal(g); err != nil {
		return nil, nil, err
	}
	mv := rec.Moves
	if mv == nil {
		mv = []string{}
	}
	if moves, err = json.Marshal(mv); err != nil {
		return nil, nil, err
	}
	return game, moves, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (p *Postgres) GetMatch(ctx context.Context, id int) (*match.Record, error) {
	rec, err := scanMatch(p.db.QueryRowContext(ctx, selectMatch+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dataAccess("get match", err)
	}
	return rec, nil
}

func (p *Postgres) CreateMatch(ctx context.Context, rec *match.Record) (int, error) {
	if rec == nil {
		return 0, fmt.Errorf("create match: nil record")
	}
	game, moves, err := encodeColumns(rec)
	if err != nil {
		return 0, dataAccess("encode match", err)
	}
	args := []any{
		nullable(rec.WhiteUsername), nullable(rec.BlackUsername), rec.Name,
		string(game), string(rec.State), string(moves), string(rec.Winner), rec.Reason,
		rec.CreatedAt, rec.UpdatedAt,
	}
	q := `INSERT INTO chess_matches (white_username, black_username, name, game, state, moves,
		winner, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6::jsonb, $7, $8, $9, $10) RETURNING id`
	if rec.ID != 0 {
		q = `INSERT INTO chess_matches (white_username, black_username, name, game, state, moves,
			winner, reason, created_at, updated_at, id)
			VALUES ($1, $2, $3, $4::jsonb, $5, $6::jsonb, $7, $8, $9, $10, $11) RETURNING id`
		args = append(args, rec.ID)
	}
	var id int
	if err := p.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
		return 0, dataAccess("create match", err)
	}
	if rec.ID != 0 {
		// keep the serial ahead of explicitly chosen ids
		_, err := p.db.ExecContext(ctx, `SELECT setval(pg_get_serial_sequence('chess_matches', 'id'),
			GREATEST((SELECT MAX(id) FROM chess_matches), 1))`)
		if err != nil {
			return 0, dataAccess("advance match id", err)
		}
	}
	return id, nil
}

func (p *Postgres) UpdateMatch(ctx context.Context, id int, rec *match.Record) error {
	if rec == nil {
		return fmt.Errorf("update match: nil record")
	}
	game, moves, err := encodeColumns(rec)
	if err != nil {
		return dataAccess("encode match", err)
	}
	res, err := p.db.ExecContext(ctx, `UPDATE chess_matches SET
		white_username = $2, black_username = $3, name = $4, game = $5::jsonb, state = $6,
		moves = $7::jsonb, winner = $8, reason = $9, updated_at = $10
		WHERE id = $1`,
		id, nullable(rec.WhiteUsername), nullable(rec.BlackUsername), rec.Name, string(game),
		string(rec.State), string(moves), string(rec.Winner), rec.Reason, rec.UpdatedAt)
	if err != nil {
		return dataAccess("update match", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dataAccess("update match", err)
	}
	if n == 0 {
		return match.ErrNotFound
	}
	return nil
}

func (p *Postgres) ListMatches(ctx context.Context) ([]*match.Record, error) {
	rows, err := p.db.QueryContext(ctx, selectMatch+` ORDER BY id`)
	if err != nil {
		return nil, dataAccess("list matches", err)
	}
	defer rows.Close()
	var out []*match.Record
	for rows.Next() {
		rec, err := scanMatch(rows)
		if err != nil {
			return nil, dataAccess("list matches", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dataAccess("list matches", err)
	}
	return out, nil
}

func (p *Postgres) GetIdentity(ctx context.Context, token string) (string, bool, error) {
	var name string
	err := p.db.QueryRowContext(ctx, `SELECT username FROM chess_identities WHERE token = $1`, token).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, dataAccess("get identity", err)
	}
	return name, true, nil
}

func (p *Postgres) PutIdentity(ctx context.Context, token, username string) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO chess_identities (token, username) VALUES ($1, $2)
		ON CONFLICT (token) DO UPDATE SET username = EXCLUDED.username`, token, username)
	if err != nil {
		return dataAccess("put identity", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
