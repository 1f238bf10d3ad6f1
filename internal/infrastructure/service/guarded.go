package service

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/alem-hub/course-rewards/internal/application/distributor"
	"github.com/alem-hub/course-rewards/internal/domain/shared"
	"github.com/alem-hub/course-rewards/pkg/circuitbreaker"
)

// GuardedScorer routes scoring calls through a circuit breaker.
type GuardedScorer struct {
	next    distributor.QuizScorer
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedScorer wraps next with breaker.
func NewGuardedScorer(next distributor.QuizScorer, breaker *circuitbreaker.CircuitBreaker) *GuardedScorer {
	return &GuardedScorer{next: next, breaker: breaker}
}

// ScoreQuiz implements distributor.QuizScorer.
func (g *GuardedScorer) ScoreQuiz(ctx context.Context, course shared.CourseID, answers []uint64) (uint64, error) {
	var score uint64
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		score, err = g.next.ScoreQuiz(ctx, course, answers)
		return err
	})
	return score, err
}

// GuardedMinter routes mint calls through a circuit breaker.
type GuardedMinter struct {
	next    distributor.TokenMinter
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedMinter wraps next with breaker.
func NewGuardedMinter(next distributor.TokenMinter, breaker *circuitbreaker.CircuitBreaker) *GuardedMinter {
	return &GuardedMinter{next: next, breaker: breaker}
}

// Mint implements distributor.TokenMinter.
func (g *GuardedMinter) Mint(ctx context.Context, recipient shared.Identity, amount *uint256.Int) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.Mint(ctx, recipient, amount)
	})
}

// GuardedProgress routes progress updates through a circuit breaker.
type GuardedProgress struct {
	next    distributor.ProgressTracker
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedProgress wraps next with breaker.
func NewGuardedProgress(next distributor.ProgressTracker, breaker *circuitbreaker.CircuitBreaker) *GuardedProgress {
	return &GuardedProgress{next: next, breaker: breaker}
}

// CompleteCourse implements distributor.ProgressTracker.
func (g *GuardedProgress) CompleteCourse(ctx context.Context, user shared.Identity, course shared.CourseID) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.CompleteCourse(ctx, user, course)
	})
}
