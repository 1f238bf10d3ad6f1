package quiz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerKeyScorer(t *testing.T) {
	ctx := context.Background()
	keys := NewMemoryKeys()
	require.NoError(t, keys.SetAnswerKey(ctx, 1, []uint64{1, 2, 3, 4, 1, 2, 3, 4, 1, 2}))

	scorer := NewAnswerKeyScorer(keys)

	tests := []struct {
		name    string
		answers []uint64
		want    uint64
	}{
		{"all correct", []uint64{1, 2, 3, 4, 1, 2, 3, 4, 1, 2}, 100},
		{"eight correct", []uint64{1, 2, 3, 4, 1, 2, 3, 4, 0, 0}, 80},
		{"none correct", []uint64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := scorer.ScoreQuiz(ctx, 1, tt.answers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, score)
		})
	}
}

func TestAnswerKeyScorer_Errors(t *testing.T) {
	ctx := context.Background()
	keys := NewMemoryKeys()
	require.NoError(t, keys.SetAnswerKey(ctx, 1, []uint64{1, 2, 3}))
	scorer := NewAnswerKeyScorer(keys)

	_, err := scorer.ScoreQuiz(ctx, 2, []uint64{1})
	assert.ErrorIs(t, err, ErrAnswerKeyMissing)

	_, err = scorer.ScoreQuiz(ctx, 1, []uint64{1, 2})
	assert.ErrorIs(t, err, ErrAnswerCountMismatch)
}

func TestMemoryKeys_Copies(t *testing.T) {
	ctx := context.Background()
	keys := NewMemoryKeys()

	key := []uint64{1, 2}
	require.NoError(t, keys.SetAnswerKey(ctx, 1, key))
	key[0] = 9

	got, err := keys.AnswerKey(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, got)
}
