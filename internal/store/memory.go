package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/park285/cheese-chess-hub/internal/match"
)

// Memory keeps records in process. Records are copied on the way in and out.
type Memory struct {
	mu sync.RWMutex

	nextID     int
	matches    map[int]*match.Record
	identities map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		matches:    make(map[int]*match.Record),
		identities: make(map[string]string),
	}
}

func (m *Memory) GetMatch(ctx context.Context, id int) (*match.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.matches[id]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (m *Memory) CreateMatch(ctx context.Context, rec *match.Record) (int, error) {
	if rec == nil {
		return 0, fmt.Errorf("create match: nil record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := rec.ID
	if id == 0 {
		m.nextID++
		for m.matches[m.nextID] != nil {
			m.nextID++
		}
		id = m.nextID
	} else if _, exists := m.matches[id]; exists {
		return 0, dataAccess("create match", fmt.Errorf("id %d exists", id))
	}
	cp := rec.Clone()
	cp.ID = id
	m.matches[id] = cp
	return id, nil
}

func (m *Memory) UpdateMatch(ctx context.Context, id int, rec *match.Record) error {
	if rec == nil {
		return fmt.Errorf("update match: nil record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[id]; !ok {
		return match.ErrNotFound
	}
	cp := rec.Clone()
	cp.ID = id
	m.matches[id] = cp
	return nil
}

func (m *Memory) ListMatches(ctx context.Context) ([]*match.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*match.Record, 0, len(m.matches))
	for _, rec := range m.matches {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetIdentity(ctx context.Context, token string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.identities[token]
	return name, ok, nil
}

func (m *Memory) PutIdentity(ctx context.Context, token, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[token] = username
	return nil
}

func (m *Memory) Close() error { return nil }
