// Package reward holds the reward configuration of every course and the pure
// arithmetic that turns a quiz score into a token amount.
package reward

import (
	"sync"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
)

const (
	// DefaultAdmin is the administrator principal a fresh store starts with.
	DefaultAdmin shared.Identity = "ST1ADMIN"

	// DefaultMultiplier is the global multiplier a fresh store starts with.
	DefaultMultiplier uint64 = 100

	// MinDifficulty and MaxDifficulty bound CourseRewardConfig.Difficulty.
	MinDifficulty uint64 = 1
	MaxDifficulty uint64 = 5
)

// CourseRewardConfig is the reward configuration of one course.
type CourseRewardConfig struct {
	Difficulty    uint64 `json:"difficulty"`
	BaseReward    uint64 `json:"baseReward"`
	PassThreshold uint64 `json:"passThreshold"`
}

// Validate checks the config invariants. Difficulty is checked first.
func (c CourseRewardConfig) Validate() error {
	if c.Difficulty < MinDifficulty || c.Difficulty > MaxDifficulty {
		return shared.ErrInvalidDifficulty
	}
	if c.BaseReward == 0 || c.PassThreshold == 0 {
		return shared.ErrInvalidValue
	}
	return nil
}

// ConfigStore holds per-course reward configs together with the global
// multiplier and the administrator identity. Every write is admin gated.
type ConfigStore struct {
	mu         sync.RWMutex
	admin      shared.Identity
	multiplier uint64
	courses    map[shared.CourseID]CourseRewardConfig
}

// NewConfigStore creates a store. Zero values fall back to the defaults.
func NewConfigStore(admin shared.Identity, multiplier uint64) *ConfigStore {
	if admin.IsZero() {
		admin = DefaultAdmin
	}
	if multiplier == 0 {
		multiplier = DefaultMultiplier
	}
	return &ConfigStore{
		admin:      admin,
		multiplier: multiplier,
		courses:    make(map[shared.CourseID]CourseRewardConfig),
	}
}

// SetAdmin hands the administrator role to newAdmin.
func (s *ConfigStore) SetAdmin(caller, newAdmin shared.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return shared.ErrNotAuthorized
	}
	s.admin = newAdmin
	return nil
}

// SetRewardMultiplier replaces the global multiplier.
func (s *ConfigStore) SetRewardMultiplier(caller shared.Identity, multiplier uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return shared.ErrNotAuthorized
	}
	if multiplier == 0 {
		return shared.ErrInvalidValue
	}
	s.multiplier = multiplier
	return nil
}

// AddCourseRewardConfig inserts or overwrites the config of a course.
func (s *ConfigStore) AddCourseRewardConfig(caller shared.Identity, course shared.CourseID, difficulty uint64, baseReward, passThreshold uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return shared.ErrNotAuthorized
	}

	cfg := CourseRewardConfig{
		Difficulty:    difficulty,
		BaseReward:    baseReward,
		PassThreshold: passThreshold,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.courses[course] = cfg
	return nil
}

// CourseRewardConfig looks up the config of a course.
func (s *ConfigStore) CourseRewardConfig(course shared.CourseID) (CourseRewardConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.courses[course]
	return cfg, ok
}

// Admin returns the current administrator.
func (s *ConfigStore) Admin() shared.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin
}

// Multiplier returns the current global multiplier.
func (s *ConfigStore) Multiplier() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.multiplier
}

// Courses returns the number of configured courses.
func (s *ConfigStore) Courses() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.courses)
}
