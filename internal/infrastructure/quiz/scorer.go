// Package quiz scores submitted answers against per-course answer keys.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
)

// MaxScore is the score of a fully correct submission.
const MaxScore = 100

var (
	// ErrAnswerKeyMissing is returned when no key is stored for a course.
	ErrAnswerKeyMissing = errors.New("quiz: answer key missing")

	// ErrAnswerCountMismatch is returned when the submission and the key
	// differ in length.
	ErrAnswerCountMismatch = errors.New("quiz: answer count does not match key")
)

// KeySource loads the answer key of a course.
type KeySource interface {
	AnswerKey(ctx context.Context, course shared.CourseID) ([]uint64, error)
}

// AnswerKeyScorer awards MaxScore/len(key) points for every correct answer.
type AnswerKeyScorer struct {
	keys KeySource
}

// NewAnswerKeyScorer creates a scorer reading keys from source.
func NewAnswerKeyScorer(source KeySource) *AnswerKeyScorer {
	return &AnswerKeyScorer{keys: source}
}

// ScoreQuiz implements distributor.QuizScorer.
func (s *AnswerKeyScorer) ScoreQuiz(ctx context.Context, course shared.CourseID, answers []uint64) (uint64, error) {
	key, err := s.keys.AnswerKey(ctx, course)
	if err != nil {
		return 0, fmt.Errorf("quiz: load key for course %d: %w", course, err)
	}
	if len(key) == 0 {
		return 0, ErrAnswerKeyMissing
	}
	if len(answers) != len(key) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrAnswerCountMismatch, len(answers), len(key))
	}

	var correct uint64
	for i, a := range answers {
		if a == key[i] {
			correct++
		}
	}
	return correct * (MaxScore / uint64(len(key))), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY KEYS
// ══════════════════════════════════════════════════════════════════════════════

// MemoryKeys is a KeySource backed by a map.
type MemoryKeys struct {
	mu   sync.RWMutex
	keys map[shared.CourseID][]uint64
}

// NewMemoryKeys creates an empty key set.
func NewMemoryKeys() *MemoryKeys {
	return &MemoryKeys{keys: make(map[shared.CourseID][]uint64)}
}

// SetAnswerKey stores the key of a course.
func (m *MemoryKeys) SetAnswerKey(_ context.Context, course shared.CourseID, key []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[course] = append([]uint64(nil), key...)
	return nil
}

// AnswerKey implements KeySource.
func (m *MemoryKeys) AnswerKey(_ context.Context, course shared.CourseID) ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.keys[course]
	if !ok {
		return nil, ErrAnswerKeyMissing
	}
	return append([]uint64(nil), key...), nil
}
