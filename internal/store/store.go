// Package store persists match records and resolves identity tokens.
// Every backend wraps its failures so that errors.Is(err, match.ErrDataAccess) holds.
package store

import (
	"context"
	"fmt"

	"github.com/park285/cheese-chess-hub/internal/match"
)

// Store is the data-access contract consumed by the hub and the lobby.
type Store interface {
	// GetMatch returns (nil, nil) when no record exists for id.
	GetMatch(ctx context.Context, id int) (*match.Record, error)
	// CreateMatch persists rec and returns its id. A zero rec.ID gets the next free id.
	CreateMatch(ctx context.Context, rec *match.Record) (int, error)
	// UpdateMatch replaces the record stored under id. Missing ids yield match.ErrNotFound.
	UpdateMatch(ctx context.Context, id int, rec *match.Record) error
	// ListMatches returns every record ordered by id.
	ListMatches(ctx context.Context) ([]*match.Record, error)
	// GetIdentity resolves an auth token. ok is false for unknown tokens.
	GetIdentity(ctx context.Context, token string) (username string, ok bool, err error)
	PutIdentity(ctx context.Context, token, username string) error
	Close() error
}

func dataAccess(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, match.ErrDataAccess, err)
}
