package completion

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
)

func TestLedger_CommitOnce(t *testing.T) {
	ledger := NewLedger()
	key := shared.NewEnrollmentKey("ST1USER", 1)

	_, ok := ledger.Get(key)
	assert.False(t, ok)

	rec, err := ledger.Commit(key, 80, 3, "CERT-AAAAAAAAA", uint256.NewInt(10000))
	require.NoError(t, err)
	assert.True(t, rec.Completed)

	got, ok := ledger.Get(key)
	require.True(t, ok)
	assert.Equal(t, uint64(80), got.Score)
	assert.Equal(t, uint64(3), got.Timestamp)
	assert.Equal(t, "CERT-AAAAAAAAA", got.CertID)
	assert.Equal(t, uint64(10000), got.Reward.Uint64())

	_, err = ledger.Commit(key, 100, 9, "CERT-BBBBBBBBB", uint256.NewInt(1))
	assert.ErrorIs(t, err, shared.ErrAlreadyCompleted)

	got, _ = ledger.Get(key)
	assert.Equal(t, "CERT-AAAAAAAAA", got.CertID, "record must be immutable")
	assert.Equal(t, 1, ledger.Len())
}

func TestLedger_GetReturnsCopy(t *testing.T) {
	ledger := NewLedger()
	key := shared.NewEnrollmentKey("ST1USER", 1)

	reward := uint256.NewInt(500)
	_, err := ledger.Commit(key, 90, 1, "CERT-1", reward)
	require.NoError(t, err)

	reward.SetUint64(1)
	got, _ := ledger.Get(key)
	got.Reward.SetUint64(2)

	again, _ := ledger.Get(key)
	assert.Equal(t, uint64(500), again.Reward.Uint64())
}

func TestLedger_SumRewards(t *testing.T) {
	ledger := NewLedger()

	assert.True(t, ledger.SumRewards().IsZero())

	_, err := ledger.Commit(shared.NewEnrollmentKey("a", 1), 80, 1, "CERT-1", uint256.NewInt(10000))
	require.NoError(t, err)
	_, err = ledger.Commit(shared.NewEnrollmentKey("b", 1), 90, 2, "CERT-2", uint256.NewInt(11200))
	require.NoError(t, err)
	_, err = ledger.Commit(shared.NewEnrollmentKey("a", 2), 70, 3, "CERT-3", nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(21200), ledger.SumRewards().Uint64())
}

func TestLedger_EntriesOrdered(t *testing.T) {
	ledger := NewLedger()

	_, _ = ledger.Commit(shared.NewEnrollmentKey("b", 1), 80, 5, "CERT-3", nil)
	_, _ = ledger.Commit(shared.NewEnrollmentKey("a", 2), 80, 2, "CERT-2", nil)
	_, _ = ledger.Commit(shared.NewEnrollmentKey("a", 1), 80, 2, "CERT-1", nil)

	entries := ledger.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "CERT-1", entries[0].Record.CertID)
	assert.Equal(t, "CERT-2", entries[1].Record.CertID)
	assert.Equal(t, "CERT-3", entries[2].Record.CertID)
}
