package services

import (
	"math"

	"github.com/cppla/rewards/config"
)

// Curve evaluates the faucet reward and daily target curves.
type Curve struct {
	cfg config.FaucetConfig
}

// NewCurve builds a curve from the faucet constants.
func NewCurve(cfg config.FaucetConfig) Curve {
	return Curve{cfg: cfg}
}

// MaxDay is the last streak day.
func (c Curve) MaxDay() int {
	return c.cfg.MaxStreakDays
}

// DayReward is the coin amount of one claim on streak day d. Each day compounds on the
// previous day's rounded amount.
func (c Curve) DayReward(d int) int64 {
	d = c.clampDay(d)
	reward := c.cfg.BaseReward
	for i := 2; i <= d; i++ {
		next := int64(math.Ceil(float64(reward) * (1 + c.cfg.GrowthRate)))
		if next >= c.cfg.MaxReward {
			return c.cfg.MaxReward
		}
		reward = next
	}
	if reward > c.cfg.MaxReward {
		return c.cfg.MaxReward
	}
	return reward
}

// Target is the coins that must be earned on streak day d to advance.
func (c Curve) Target(d int) int64 {
	d = c.clampDay(d)
	t := int64(math.Ceil(float64(c.cfg.BaseDailyTarget) * math.Pow(1+c.cfg.TargetGrowthRate, float64(d-1))))
	if t > c.cfg.MaxDailyTarget {
		return c.cfg.MaxDailyTarget
	}
	return t
}

func (c Curve) clampDay(d int) int {
	if d < 1 {
		return 1
	}
	if d > c.cfg.MaxStreakDays {
		return c.cfg.MaxStreakDays
	}
	return d
}
