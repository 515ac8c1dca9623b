package bloodunit

import (
	"sync"

	"github.com/google/uuid"
)

type unitLock struct {
	mu   sync.Mutex
	refs int
}

// unitLocks serialises load, mutate and commit for one unit within this
// process. Entries are dropped once nobody holds or waits on them.
type unitLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*unitLock
}

func newUnitLocks() *unitLocks {
	return &unitLocks{locks: make(map[uuid.UUID]*unitLock)}
}

func (l *unitLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	ul, ok := l.locks[id]
	if !ok {
		ul = &unitLock{}
		l.locks[id] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *unitLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
