package service

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
	"github.com/alem-hub/course-rewards/pkg/circuitbreaker"
)

func TestMemoryMinter_SupplyCap(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMinter(uint256.NewInt(15000))

	require.NoError(t, m.Mint(ctx, "alice", uint256.NewInt(10000)))
	assert.Equal(t, uint64(10000), m.BalanceOf("alice").Uint64())

	err := m.Mint(ctx, "bob", uint256.NewInt(10000))
	assert.ErrorIs(t, err, ErrSupplyCapExceeded)
	assert.True(t, m.BalanceOf("bob").IsZero())
	assert.Equal(t, uint64(10000), m.Supply().Uint64())

	require.NoError(t, m.Mint(ctx, "bob", uint256.NewInt(5000)))
	assert.Equal(t, uint64(15000), m.Supply().Uint64())
}

func TestMemoryMinter_Unlimited(t *testing.T) {
	m := NewMemoryMinter(nil)

	require.NoError(t, m.Mint(context.Background(), "alice", new(uint256.Int).Lsh(uint256.NewInt(1), 200)))
	assert.ErrorIs(t, m.Mint(context.Background(), "", uint256.NewInt(1)), ErrInvalidRecipient)
}

func TestMemoryProgress(t *testing.T) {
	p := NewMemoryProgress()

	assert.False(t, p.IsCompleted("alice", 1))
	require.NoError(t, p.CompleteCourse(context.Background(), "alice", 1))
	require.NoError(t, p.CompleteCourse(context.Background(), "alice", 1))
	assert.True(t, p.IsCompleted("alice", 1))
	assert.False(t, p.IsCompleted("alice", 2))
}

type failingMinter struct{ calls int }

func (f *failingMinter) Mint(context.Context, shared.Identity, *uint256.Int) error {
	f.calls++
	return errors.New("ledger down")
}

func TestGuardedMinter_OpensCircuit(t *testing.T) {
	inner := &failingMinter{}
	g := NewGuardedMinter(inner, circuitbreaker.New("minter", circuitbreaker.WithFailureThreshold(2)))

	for i := 0; i < 2; i++ {
		assert.Error(t, g.Mint(context.Background(), "alice", uint256.NewInt(1)))
	}
	err := g.Mint(context.Background(), "alice", uint256.NewInt(1))
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
}

type staticScorer struct{ score uint64 }

func (s staticScorer) ScoreQuiz(context.Context, shared.CourseID, []uint64) (uint64, error) {
	return s.score, nil
}

func TestGuardedScorerAndProgress_PassThrough(t *testing.T) {
	scorer := NewGuardedScorer(staticScorer{score: 90}, circuitbreaker.New("scorer"))
	score, err := scorer.ScoreQuiz(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(90), score)

	inner := NewMemoryProgress()
	progress := NewGuardedProgress(inner, circuitbreaker.New("progress"))
	require.NoError(t, progress.CompleteCourse(context.Background(), "alice", 3))
	assert.True(t, inner.IsCompleted("alice", 3))
}
