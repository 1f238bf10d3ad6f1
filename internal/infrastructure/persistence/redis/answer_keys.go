package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
	"github.com/alem-hub/course-rewards/internal/infrastructure/quiz"
)

// AnswerKeyStore keeps quiz answer keys in Redis. It implements
// quiz.KeySource.
type AnswerKeyStore struct {
	cache *Cache
}

// NewAnswerKeyStore creates a store on top of cache.
func NewAnswerKeyStore(cache *Cache) *AnswerKeyStore {
	return &AnswerKeyStore{cache: cache}
}

// SetAnswerKey stores the key of a course without expiry.
func (s *AnswerKeyStore) SetAnswerKey(ctx context.Context, course shared.CourseID, key []uint64) error {
	if len(key) == 0 {
		return fmt.Errorf("answer key for course %d is empty", course)
	}
	return s.cache.Set(ctx, AnswerKeyKey(course), key, 0)
}

// AnswerKey implements quiz.KeySource.
func (s *AnswerKeyStore) AnswerKey(ctx context.Context, course shared.CourseID) ([]uint64, error) {
	var key []uint64
	if err := s.cache.Get(ctx, AnswerKeyKey(course), &key); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, quiz.ErrAnswerKeyMissing
		}
		return nil, err
	}
	return key, nil
}

// DeleteAnswerKey removes the key of a course.
func (s *AnswerKeyStore) DeleteAnswerKey(ctx context.Context, course shared.CourseID) error {
	return s.cache.Delete(ctx, AnswerKeyKey(course))
}
