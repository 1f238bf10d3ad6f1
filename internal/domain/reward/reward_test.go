package reward

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
)

const (
	admin shared.Identity = "ST1ADMIN"
	user  shared.Identity = "ST1USER"
)

func TestNewConfigStore_Defaults(t *testing.T) {
	store := NewConfigStore("", 0)

	assert.Equal(t, DefaultAdmin, store.Admin())
	assert.Equal(t, DefaultMultiplier, store.Multiplier())
	assert.Equal(t, 0, store.Courses())
}

func TestConfigStore_AddCourseRewardConfig(t *testing.T) {
	store := NewConfigStore(admin, 100)

	err := store.AddCourseRewardConfig(admin, 1, 3, 100, 80)
	require.NoError(t, err)

	cfg, ok := store.CourseRewardConfig(1)
	require.True(t, ok)
	assert.Equal(t, uint64(3), cfg.Difficulty)
	assert.Equal(t, uint64(100), cfg.BaseReward)
	assert.Equal(t, uint64(80), cfg.PassThreshold)
}

func TestConfigStore_AddCourseRewardConfig_Overwrites(t *testing.T) {
	store := NewConfigStore(admin, 100)

	require.NoError(t, store.AddCourseRewardConfig(admin, 1, 3, 100, 80))
	require.NoError(t, store.AddCourseRewardConfig(admin, 1, 5, 250, 90))

	cfg, ok := store.CourseRewardConfig(1)
	require.True(t, ok)
	assert.Equal(t, CourseRewardConfig{Difficulty: 5, BaseReward: 250, PassThreshold: 90}, cfg)
	assert.Equal(t, 1, store.Courses())
}

func TestConfigStore_AddCourseRewardConfig_Validation(t *testing.T) {
	tests := []struct {
		name       string
		caller     shared.Identity
		difficulty uint64
		base       uint64
		threshold  uint64
		want       error
	}{
		{"not admin", user, 3, 100, 80, shared.ErrNotAuthorized},
		{"not admin beats bad difficulty", user, 6, 0, 0, shared.ErrNotAuthorized},
		{"difficulty zero", admin, 0, 100, 80, shared.ErrInvalidDifficulty},
		{"difficulty six", admin, 6, 100, 80, shared.ErrInvalidDifficulty},
		{"difficulty past one byte", admin, 256, 100, 80, shared.ErrInvalidDifficulty},
		{"difficulty 261 does not wrap to 5", admin, 261, 100, 80, shared.ErrInvalidDifficulty},
		{"difficulty max uint64", admin, ^uint64(0), 100, 80, shared.ErrInvalidDifficulty},
		{"difficulty beats zero base", admin, 6, 0, 80, shared.ErrInvalidDifficulty},
		{"zero base reward", admin, 3, 0, 80, shared.ErrInvalidValue},
		{"zero threshold", admin, 3, 100, 0, shared.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewConfigStore(admin, 100)

			err := store.AddCourseRewardConfig(tt.caller, 1, tt.difficulty, tt.base, tt.threshold)
			assert.ErrorIs(t, err, tt.want)

			_, ok := store.CourseRewardConfig(1)
			assert.False(t, ok)
		})
	}
}

func TestConfigStore_InvalidDifficultyKeepsPriorValue(t *testing.T) {
	store := NewConfigStore(admin, 100)
	require.NoError(t, store.AddCourseRewardConfig(admin, 1, 3, 100, 80))

	err := store.AddCourseRewardConfig(admin, 1, 6, 100, 80)
	assert.ErrorIs(t, err, shared.ErrInvalidDifficulty)

	cfg, ok := store.CourseRewardConfig(1)
	require.True(t, ok)
	assert.Equal(t, uint64(3), cfg.Difficulty)
}

func TestConfigStore_SetRewardMultiplier(t *testing.T) {
	store := NewConfigStore(admin, 100)

	assert.ErrorIs(t, store.SetRewardMultiplier(user, 200), shared.ErrNotAuthorized)
	assert.ErrorIs(t, store.SetRewardMultiplier(admin, 0), shared.ErrInvalidValue)
	assert.Equal(t, uint64(100), store.Multiplier())

	require.NoError(t, store.SetRewardMultiplier(admin, 200))
	assert.Equal(t, uint64(200), store.Multiplier())
}

func TestConfigStore_SetAdmin(t *testing.T) {
	store := NewConfigStore(admin, 100)

	assert.ErrorIs(t, store.SetAdmin(user, user), shared.ErrNotAuthorized)
	assert.Equal(t, admin, store.Admin())

	require.NoError(t, store.SetAdmin(admin, "ST2ADMIN"))
	assert.Equal(t, shared.Identity("ST2ADMIN"), store.Admin())

	// the previous admin lost every privilege
	assert.ErrorIs(t, store.SetRewardMultiplier(admin, 5), shared.ErrNotAuthorized)
	assert.ErrorIs(t, store.AddCourseRewardConfig(admin, 1, 1, 1, 1), shared.ErrNotAuthorized)
	require.NoError(t, store.SetRewardMultiplier("ST2ADMIN", 5))
}

func TestConfigStore_IdentityIsExactMatch(t *testing.T) {
	store := NewConfigStore(admin, 100)

	assert.ErrorIs(t, store.SetRewardMultiplier("st1admin", 2), shared.ErrNotAuthorized)
	assert.ErrorIs(t, store.SetRewardMultiplier("ST1ADMIN ", 2), shared.ErrNotAuthorized)
}

func TestCalculateReward(t *testing.T) {
	tests := []struct {
		name                         string
		base, score, threshold, mult uint64
		want                         uint64
	}{
		{"score equals threshold", 100, 80, 80, 100, 10000},
		{"score above threshold", 100, 100, 80, 100, 12500},
		{"floor before multiplier", 50, 71, 70, 100, 5000},
		{"truncation after product", 7, 10, 3, 1, 23},
		{"multiplier one", 100, 80, 80, 1, 100},
		{"zero score", 100, 0, 80, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateReward(tt.base, tt.score, tt.threshold, tt.mult)
			assert.Equal(t, tt.want, got.Uint64())
		})
	}
}

func TestCalculateReward_NoIntermediateOverflow(t *testing.T) {
	got := CalculateReward(math.MaxUint64, 10, 5, 3)

	want := new(uint256.Int).Mul(uint256.NewInt(math.MaxUint64), uint256.NewInt(6))
	assert.True(t, want.Eq(got), "got %s want %s", got.Dec(), want.Dec())
	assert.False(t, got.IsUint64())
}

func TestCourseRewardConfig_Passed(t *testing.T) {
	cfg := CourseRewardConfig{Difficulty: 3, BaseReward: 100, PassThreshold: 80}

	assert.True(t, cfg.Passed(80))
	assert.True(t, cfg.Passed(81))
	assert.False(t, cfg.Passed(79))
	assert.Equal(t, uint64(10000), cfg.RewardFor(80, 100).Uint64())
}
