package distributor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATORS
// The distributor holds handles to these and calls them synchronously. Each
// implementation reports failures from its own error taxonomy; the distributor
// only distinguishes success from failure.
// ══════════════════════════════════════════════════════════════════════════════

// QuizScorer scores a submitted quiz.
type QuizScorer interface {
	ScoreQuiz(ctx context.Context, course shared.CourseID, answers []uint64) (uint64, error)
}

// TokenMinter mints reward tokens to a recipient.
type TokenMinter interface {
	Mint(ctx context.Context, recipient shared.Identity, amount *uint256.Int) error
}

// ProgressTracker records that a user finished a course.
type ProgressTracker interface {
	CompleteCourse(ctx context.Context, user shared.Identity, course shared.CourseID) error
}

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock returns the logical timestamp (block height) stamped on completions.
type Clock interface {
	Now() uint64
}

// HeightClock is a manually driven logical clock.
type HeightClock struct {
	height atomic.Uint64
}

// NewHeightClock creates a clock starting at height.
func NewHeightClock(height uint64) *HeightClock {
	c := &HeightClock{}
	c.height.Store(height)
	return c
}

// Now implements Clock.
func (c *HeightClock) Now() uint64 {
	return c.height.Load()
}

// Set moves the clock to height.
func (c *HeightClock) Set(height uint64) {
	c.height.Store(height)
}

// Advance moves the clock forward by one block and returns the new height.
func (c *HeightClock) Advance() uint64 {
	return c.height.Add(1)
}

// ══════════════════════════════════════════════════════════════════════════════
// OBSERVER
// ══════════════════════════════════════════════════════════════════════════════

// Observer receives the outcome of every operation, for metrics.
type Observer interface {
	ObserveEnrollment(created bool)
	ObserveClaim(err error, tokens *uint256.Int, elapsed time.Duration)
	ObserveAdmin(op string, err error)
	ObserveTotal(total *uint256.Int)
}

// NopObserver ignores every observation.
type NopObserver struct{}

func (NopObserver) ObserveEnrollment(bool) {}
func (NopObserver) ObserveClaim(error, *uint256.Int, time.Duration) {}
func (NopObserver) ObserveAdmin(string, error) {}
func (NopObserver) ObserveTotal(*uint256.Int) {}
