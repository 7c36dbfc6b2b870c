package hub

import (
	"cmp"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/park285/cheese-chess-hub/internal/match"
	"github.com/park285/cheese-chess-hub/pkg/chessdto"
)

// Conn is one live client connection. Send must not block: transports queue the
// message and report an error when the connection is closed or its queue is full.
type Conn interface {
	ID() string
	Send(msg chessdto.ServerMessage) error
}

type member struct {
	conn     Conn
	username string
	team     match.Team
	seq      uint64
}

// registry groups connections by match id. A connection is in at most one group.
type registry struct {
	mu     sync.RWMutex
	groups map[int]map[string]*member
	where  map[string]int
	seq    uint64
}

func newRegistry() *registry {
	return &registry{
		groups: make(map[int]map[string]*member),
		where:  make(map[string]int),
	}
}

// add places m in matchID's group, pulling it out of any previous group.
// It returns the member it displaced from another match, if any.
func (r *registry) add(matchID int, m *member) (prevMatch int, prev *member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := m.conn.ID()
	if old, ok := r.where[id]; ok {
		prev = r.groups[old][id]
		r.detach(old, id)
		if old != matchID {
			prevMatch = old
		} else {
			prev = nil
		}
	}
	group := r.groups[matchID]
	if group == nil {
		group = make(map[string]*member)
		r.groups[matchID] = group
	}
	r.seq++
	m.seq = r.seq
	group[id] = m
	r.where[id] = matchID
	return prevMatch, prev
}

// remove drops connID from its group.
func (r *registry) remove(connID string) (int, *member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matchID, ok := r.where[connID]
	if !ok {
		return 0, nil, false
	}
	m := r.groups[matchID][connID]
	r.detach(matchID, connID)
	return matchID, m, true
}

func (r *registry) detach(matchID int, connID string) {
	delete(r.where, connID)
	group := r.groups[matchID]
	delete(group, connID)
	if len(group) == 0 {
		delete(r.groups, matchID)
	}
}

func (r *registry) lookup(connID string) (int, *member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matchID, ok := r.where[connID]
	if !ok {
		return 0, nil, false
	}
	return matchID, r.groups[matchID][connID], true
}

// members snapshots matchID's group in join order.
func (r *registry) members(matchID int) []*member {
	r.mu.RLock()
	out := maps.Values(r.groups[matchID])
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *member) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

func (r *registry) size(matchID int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[matchID])
}
