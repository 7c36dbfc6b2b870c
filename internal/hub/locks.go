package hub

import "sync"

// matchLocks hands out one mutex per match id and forgets it once nobody holds or waits on it.
type matchLocks struct {
	mu    sync.Mutex
	locks map[int]*matchLock
}

type matchLock struct {
	mu   sync.Mutex
	refs int
}

func newMatchLocks() *matchLocks {
	return &matchLocks{locks: make(map[int]*matchLock)}
}

func (l *matchLocks) lock(id int) (unlock func()) {
	l.mu.Lock()
	ml := l.locks[id]
	if ml == nil {
		ml = &matchLock{}
		l.locks[id] = ml
	}
	ml.refs++
	l.mu.Unlock()

	ml.mu.Lock()
	return func() {
		ml.mu.Unlock()
		l.mu.Lock()
		ml.refs--
		if ml.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *matchLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
