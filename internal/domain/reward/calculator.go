package reward

import (
	"github.com/holiman/uint256"
)

// CalculateReward returns floor(baseReward*score/passThreshold) * multiplier.
//
// The product is formed before the single truncating division. All inputs are
// 64-bit, so the 256-bit intermediates cannot overflow. passThreshold must be
// positive; ConfigStore guarantees it for every stored config.
func CalculateReward(baseReward, score, passThreshold, multiplier uint64) *uint256.Int {
	adjusted := new(uint256.Int).Mul(uint256.NewInt(baseReward), uint256.NewInt(score))
	adjusted.Div(adjusted, uint256.NewInt(passThreshold))
	return adjusted.Mul(adjusted, uint256.NewInt(multiplier))
}

// RewardFor applies CalculateReward to a stored config.
func (c CourseRewardConfig) RewardFor(score, multiplier uint64) *uint256.Int {
	return CalculateReward(c.BaseReward, score, c.PassThreshold, multiplier)
}

// Passed reports whether score reaches the pass threshold.
func (c CourseRewardConfig) Passed(score uint64) bool {
	return score >= c.PassThreshold
}
