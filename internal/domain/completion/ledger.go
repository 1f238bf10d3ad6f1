// Package completion records at most one completion per (user, course).
package completion

import (
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
)

// Record is an immutable completion entry.
type Record struct {
	Completed bool   `json:"completed"`
	Score     uint64 `json:"score"`
	Timestamp uint64 `json:"timestamp"`
	CertID    string `json:"certId"`

	// Reward is the amount minted for this completion. Keeping it on the
	// record lets the global minted total be recomputed as a sum.
	Reward *uint256.Int `json:"reward"`
}

// clone returns a copy that shares no memory with the stored record.
func (r Record) clone() Record {
	if r.Reward != nil {
		r.Reward = r.Reward.Clone()
	}
	return r
}

// Entry pairs a record with its key, for iteration.
type Entry struct {
	Key    shared.EnrollmentKey
	Record Record
}

// Ledger stores completion records.
type Ledger struct {
	mu      sync.RWMutex
	records map[shared.EnrollmentKey]Record
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		records: make(map[shared.EnrollmentKey]Record),
	}
}

// Get looks up the record of a key.
func (l *Ledger) Get(key shared.EnrollmentKey) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[key]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// IsCompleted reports whether a completed record exists for the key.
func (l *Ledger) IsCompleted(key shared.EnrollmentKey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.records[key].Completed
}

// Commit inserts the completion record of a key. It is the only write path
// and fails with ErrAlreadyCompleted once a completed record exists.
func (l *Ledger) Commit(key shared.EnrollmentKey, score, timestamp uint64, certID string, reward *uint256.Int) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.records[key].Completed {
		return Record{}, shared.ErrAlreadyCompleted
	}

	rec := Record{
		Completed: true,
		Score:     score,
		Timestamp: timestamp,
		CertID:    certID,
		Reward:    new(uint256.Int),
	}
	if reward != nil {
		rec.Reward.Set(reward)
	}

	l.records[key] = rec
	return rec.clone(), nil
}

// SumRewards recomputes the minted total from the stored records.
func (l *Ledger) SumRewards() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := new(uint256.Int)
	for _, rec := range l.records {
		if rec.Completed && rec.Reward != nil {
			total.Add(total, rec.Reward)
		}
	}
	return total
}

// Len returns the number of completion records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Entries returns every record ordered by timestamp, then user, then course.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	entries := make([]Entry, 0, len(l.records))
	for key, rec := range l.records {
		entries = append(entries, Entry{Key: key, Record: rec.clone()})
	}
	l.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Record.Timestamp != b.Record.Timestamp {
			return a.Record.Timestamp < b.Record.Timestamp
		}
		if a.Key.User != b.Key.User {
			return a.Key.User < b.Key.User
		}
		return a.Key.Course < b.Key.Course
	})
	return entries
}
