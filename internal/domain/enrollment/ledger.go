// Package enrollment records which users are enrolled in which courses.
package enrollment

import (
	"sync"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
)

// Ledger is the enrollment set keyed by (user, course). Entries are never removed.
type Ledger struct {
	mu       sync.RWMutex
	enrolled map[shared.EnrollmentKey]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		enrolled: make(map[shared.EnrollmentKey]struct{}),
	}
}

// Enroll records the enrollment. Enrolling twice is a no-op; the returned
// flag reports whether this call created the entry.
func (l *Ledger) Enroll(key shared.EnrollmentKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.enrolled[key]; ok {
		return false
	}
	l.enrolled[key] = struct{}{}
	return true
}

// IsEnrolled reports whether the key has been enrolled.
func (l *Ledger) IsEnrolled(key shared.EnrollmentKey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.enrolled[key]
	return ok
}

// Count returns the number of enrollments.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.enrolled)
}
