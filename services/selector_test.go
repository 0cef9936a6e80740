package services

import (
	"math/rand"
	"testing"
)

func weightOf(w int) int { return w }

func TestPickNeverChoosesZeroWeight(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		if got := Pick([]int{1, 0}, weightOf, rng); got != 0 {
			t.Fatalf("draw %d picked index %d", i, got)
		}
		if got := Pick([]int{0, 1}, weightOf, rng); got != 1 {
			t.Fatalf("draw %d picked index %d", i, got)
		}
	}
}

func TestPickEvenSplit(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const draws = 10000
	first := 0
	for i := 0; i < draws; i++ {
		if Pick([]int{1, 1}, weightOf, rng) == 0 {
			first++
		}
	}
	if first < 4700 || first > 5300 {
		t.Errorf("first picked %d of %d draws, want about half", first, draws)
	}
}

func TestPickEdgeCases(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if got := Pick([]int{}, weightOf, rng); got != -1 {
		t.Errorf("empty = %d, want -1", got)
	}
	if got := Pick([]int{0}, weightOf, rng); got != 0 {
		t.Errorf("single zero weight = %d, want 0", got)
	}
	if got := Pick([]int{0, 0, 0}, weightOf, rng); got != 0 {
		t.Errorf("all zero = %d, want 0", got)
	}
	// r walks 3 -> 1 -> -4 and lands on the third item
	if got := Pick([]int{2, 0, 5}, weightOf, fixedRand(3)); got != 2 {
		t.Errorf("fixed draw = %d, want 2", got)
	}
}

func TestSelectEligible(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	t.Run("exhausts when every candidate is rejected", func(t *testing.T) {
		sel := SelectEligible([]int{5, 5, 5}, weightOf, rng, func(w int) (bool, Reason) {
			return false, ReasonMaxRewardLimit
		})
		if !sel.Exhausted || sel.Reason != ReasonMaxRewardLimit || sel.Tried != 3 {
			t.Errorf("selection = %+v, want exhausted after 3 tries", sel)
		}
	})

	t.Run("re-rolls among untried candidates", func(t *testing.T) {
		items := []int{1, 2, 3}
		for i := 0; i < 200; i++ {
			sel := SelectEligible(items, func(int) int { return 1 }, rng, func(v int) (bool, Reason) {
				if v == 2 {
					return true, ""
				}
				return false, ReasonRewardCooldown
			})
			if sel.Exhausted || sel.Item != 2 {
				t.Fatalf("selection = %+v, want item 2", sel)
			}
		}
		if len(items) != 3 || items[0] != 1 || items[2] != 3 {
			t.Errorf("candidates were modified: %v", items)
		}
	})

	t.Run("reports the last rejection", func(t *testing.T) {
		reasons := map[int]Reason{1: ReasonRewardCooldown, 2: ReasonMaxRewardLimit}
		sel := SelectEligible([]int{1, 2}, weightOf, fixedRand(0), func(v int) (bool, Reason) {
			return false, reasons[v]
		})
		// fixedRand(0) always takes the first remaining candidate
		if sel.Reason != ReasonMaxRewardLimit {
			t.Errorf("reason = %q, want %q", sel.Reason, ReasonMaxRewardLimit)
		}
	})

	t.Run("skips zero weights while positive ones remain", func(t *testing.T) {
		var seen []int
		sel := SelectEligible([]int{0, 4}, weightOf, rng, func(v int) (bool, Reason) {
			seen = append(seen, v)
			return false, ReasonRewardCooldown
		})
		if !sel.Exhausted || len(seen) != 1 || seen[0] != 4 {
			t.Errorf("evaluated %v, want only the weighted candidate", seen)
		}
	})

	t.Run("zero weight is never a fallback for rejected weighted ones", func(t *testing.T) {
		sel := SelectEligible([]int{0, 3, 0}, weightOf, rng, func(v int) (bool, Reason) {
			return v == 0, ReasonMaxRewardLimit
		})
		if !sel.Exhausted || sel.Tried != 1 || sel.Reason != ReasonMaxRewardLimit {
			t.Errorf("selection = %+v, want exhaustion after the weighted candidate", sel)
		}
	})

	t.Run("all zero weights are tried in order", func(t *testing.T) {
		items := []string{"a", "b", "c"}
		var seen []string
		sel := SelectEligible(items, func(string) int { return 0 }, rng, func(v string) (bool, Reason) {
			seen = append(seen, v)
			return v == "b", ReasonRewardCooldown
		})
		if sel.Exhausted || sel.Item != "b" || len(seen) != 2 || seen[0] != "a" {
			t.Errorf("selection = %+v after %v, want b on the second try", sel, seen)
		}
	})

	t.Run("empty", func(t *testing.T) {
		sel := SelectEligible([]int{}, weightOf, rng, func(int) (bool, Reason) { return true, "" })
		if !sel.Exhausted || sel.Tried != 0 {
			t.Errorf("selection = %+v", sel)
		}
	})
}
