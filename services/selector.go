package services

import (
	"math/rand"
)

// RandomSource draws uniform integers in [0, n). *rand.Rand satisfies it.
type RandomSource interface {
	Int63n(n int64) int64
}

type globalRand struct{}

func (globalRand) Int63n(n int64) int64 { return rand.Int63n(n) }

// DefaultRandom is safe for concurrent use.
var DefaultRandom RandomSource = globalRand{}

// Pick returns the index of one item chosen with probability proportional to weight.
// A single item is always chosen; when every weight is zero the first item is chosen.
// Pick returns -1 only for an empty slice.
func Pick[T any](items []T, weight func(T) int, rng RandomSource) int {
	switch len(items) {
	case 0:
		return -1
	case 1:
		return 0
	}
	var total int64
	for _, it := range items {
		if w := weight(it); w > 0 {
			total += int64(w)
		}
	}
	if total == 0 {
		return 0
	}
	r := rng.Int63n(total)
	for i, it := range items {
		w := int64(weight(it))
		if w <= 0 {
			continue
		}
		r -= w
		if r < 0 {
			return i
		}
	}
	return len(items) - 1
}

// Selection is the result of SelectEligible: either a chosen item or exhaustion of
// every candidate, in which case Reason carries the last rejection.
type Selection[T any] struct {
	Item      T
	Exhausted bool
	Reason    Reason
	Tried     int
}

// SelectEligible draws weighted candidates until eligible accepts one. Rejected candidates
// are removed and the draw repeats over the untried remainder. Zero weight candidates are
// only considered when no candidate has a positive weight.
func SelectEligible[T any](candidates []T, weight func(T) int, rng RandomSource, eligible func(T) (bool, Reason)) Selection[T] {
	pool := make([]T, 0, len(candidates))
	for _, c := range candidates {
		if weight(c) > 0 {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		pool = append(pool, candidates...)
	}
	var sel Selection[T]
	for len(pool) > 0 {
		i := Pick(pool, weight, rng)
		sel.Tried++
		ok, reason := eligible(pool[i])
		if ok {
			sel.Item = pool[i]
			return sel
		}
		sel.Reason = reason
		pool = append(pool[:i], pool[i+1:]...)
	}
	sel.Exhausted = true
	return sel
}
