// Package lobby creates, lists and seats matches ahead of the live session.
package lobby

import (
	"cmp"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/park285/cheese-chess-hub/internal/match"
	"github.com/park285/cheese-chess-hub/internal/obslog"
	"github.com/park285/cheese-chess-hub/internal/store"
)

// Locker serializes work on one match. The hub implements it so that a join
// never interleaves with a move on the same record.
type Locker interface {
	LockMatch(id int) (unlock func())
}

type Manager struct {
	store store.Store
	locks Locker
	now   func() time.Time
}

func NewManager(st store.Store, locks Locker) *Manager {
	return &Manager{store: st, locks: locks, now: time.Now}
}

// CreateGame stores a fresh Ready match with no seated players and returns its id.
func (m *Manager) CreateGame(ctx context.Context, token, name string) (int, error) {
	username, err := m.authenticate(ctx, token)
	if err != nil {
		return 0, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: game name is required", match.ErrInvalidRequest)
	}
	id, err := m.store.CreateMatch(ctx, match.New(name, m.now()))
	if err != nil {
		return 0, err
	}
	obslog.L().Info("lobby_create", zap.Int("match_id", id), zap.String("name", name), zap.String("user", username))
	return id, nil
}

// JoinGame seats the caller in team's seat if it is empty.
func (m *Manager) JoinGame(ctx context.Context, token string, id int, team match.Team) error {
	username, err := m.authenticate(ctx, token)
	if err != nil {
		return err
	}
	if team == match.TeamNone {
		return fmt.Errorf("%w: playerColor must be WHITE or BLACK", match.ErrInvalidRequest)
	}

	unlock := m.locks.LockMatch(id)
	defer unlock()

	rec, err := m.store.GetMatch(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("match %d: %w", id, match.ErrNotFound)
	}
	if seat := rec.Seat(team); seat != "" {
		obslog.L().Info("lobby_join_taken", zap.Int("match_id", id), zap.String("team", string(team)), zap.String("user", username))
		return fmt.Errorf("%s seat of match %d: %w", team, id, match.ErrAlreadyTaken)
	}
	rec.SetSeat(team, username)
	rec.UpdatedAt = m.now()
	if err := m.store.UpdateMatch(ctx, id, rec); err != nil {
		return err
	}
	obslog.L().Info("lobby_join", zap.Int("match_id", id), zap.String("team", string(team)), zap.String("user", username))
	return nil
}

// ListGames returns every match ordered by id.
func (m *Manager) ListGames(ctx context.Context, token string) ([]*match.Record, error) {
	if _, err := m.authenticate(ctx, token); err != nil {
		return nil, err
	}
	recs, err := m.store.ListMatches(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(recs, func(a, b *match.Record) int { return cmp.Compare(a.ID, b.ID) })
	return recs, nil
}

// GetGame reads one match for an authenticated caller.
func (m *Manager) GetGame(ctx context.Context, token string, id int) (*match.Record, error) {
	if _, err := m.authenticate(ctx, token); err != nil {
		return nil, err
	}
	rec, err := m.store.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("match %d: %w", id, match.ErrNotFound)
	}
	return rec, nil
}

// Authenticate resolves token to a username.
func (m *Manager) Authenticate(ctx context.Context, token string) (string, error) {
	return m.authenticate(ctx, token)
}

func (m *Manager) authenticate(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", match.ErrUnauthorized
	}
	username, ok, err := m.store.GetIdentity(ctx, token)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", match.ErrUnauthorized
	}
	return username, nil
}
