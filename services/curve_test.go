package services

import (
	"testing"
)

func TestCurveSamples(t *testing.T) {
	c := NewCurve(testRewardConfig(t).Faucet)

	for day, want := range map[int]int64{1: 12, 2: 14, 3: 16} {
		if got := c.DayReward(day); got != want {
			t.Errorf("DayReward(%d) = %d, want %d", day, got, want)
		}
	}
	for day, want := range map[int]int64{1: 300, 2: 330, 3: 364} {
		if got := c.Target(day); got != want {
			t.Errorf("Target(%d) = %d, want %d", day, got, want)
		}
	}
}

func TestCurveMonotoneAndCapped(t *testing.T) {
	rc := testRewardConfig(t)
	c := NewCurve(rc.Faucet)

	prevReward, prevTarget := int64(0), int64(0)
	for d := 1; d <= c.MaxDay(); d++ {
		r, tg := c.DayReward(d), c.Target(d)
		if r < prevReward {
			t.Fatalf("DayReward(%d) = %d decreased from %d", d, r, prevReward)
		}
		if tg < prevTarget {
			t.Fatalf("Target(%d) = %d decreased from %d", d, tg, prevTarget)
		}
		if r > rc.Faucet.MaxReward {
			t.Fatalf("DayReward(%d) = %d above cap", d, r)
		}
		if tg > rc.Faucet.MaxDailyTarget {
			t.Fatalf("Target(%d) = %d above cap", d, tg)
		}
		prevReward, prevTarget = r, tg
	}
	if got := c.DayReward(c.MaxDay()); got != rc.Faucet.MaxReward {
		t.Errorf("DayReward(max) = %d, want cap %d", got, rc.Faucet.MaxReward)
	}
	if got := c.Target(c.MaxDay()); got != rc.Faucet.MaxDailyTarget {
		t.Errorf("Target(max) = %d, want cap %d", got, rc.Faucet.MaxDailyTarget)
	}
	if c.DayReward(0) != c.DayReward(1) || c.DayReward(1000) != c.DayReward(c.MaxDay()) {
		t.Error("out of range days must clamp")
	}
}
