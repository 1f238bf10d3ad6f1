package distributor

import (
	"sync"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
)

// keyLocks hands out one mutex per enrollment key. Entries are reference
// counted and dropped when the last holder releases, so the map only holds
// keys with a transaction in flight.
type keyLocks struct {
	mu    sync.Mutex
	locks map[shared.EnrollmentKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{
		locks: make(map[shared.EnrollmentKey]*keyLock),
	}
}

// lock blocks until the caller owns key and returns the release func.
func (k *keyLocks) lock(key shared.EnrollmentKey) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// inFlight returns the number of keys currently locked or waited on.
func (k *keyLocks) inFlight() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
