// Package backoff computes retry delays for worker pools.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Kind selects the delay curve.
type Kind int

const (
	// Exponential doubles the delay on every retry: Initial * 2^attempt.
	Exponential Kind = iota
	// Jittered scales the exponential delay by a random factor in
	// [1-Jitter, 1+Jitter] so jobs failing together do not retry together.
	Jittered
	// Decorrelated picks a random delay in [Initial, 3 * previous delay].
	Decorrelated
)

// maxShift keeps 2^attempt inside an int64.
const maxShift = 62

// Policy computes retry delays. A Policy without an Initial delay never waits.
type Policy struct {
	Kind    Kind
	Initial time.Duration
	// Max caps every delay when positive.
	Max time.Duration
	// Jitter is the relative spread of Jittered delays, clamped to [0, 1].
	Jitter float64
}

// Delay returns the wait before retry number attempt, 0 being the first
// retry. prev is the delay returned for the previous retry of the same job
// and only matters for Decorrelated.
func (p Policy) Delay(attempt int, prev time.Duration) time.Duration {
	if attempt < 0 || p.Initial <= 0 {
		return 0
	}

	switch p.Kind {
	case Jittered:
		spread := min(max(p.Jitter, 0), 1)
		factor := 1 + (rand.Float64()*2-1)*spread
		return p.capped(float64(p.exponential(attempt)) * factor)

	case Decorrelated:
		if attempt == 0 || prev <= 0 {
			return p.capped(float64(p.Initial))
		}
		upper := p.capped(float64(prev) * 3)
		if upper <= p.Initial {
			return upper
		}
		return p.Initial + rand.N(upper-p.Initial)

	default:
		return p.exponential(attempt)
	}
}

func (p Policy) exponential(attempt int) time.Duration {
	factor := math.Ldexp(1, min(attempt, maxShift))
	return p.capped(float64(p.Initial) * factor)
}

func (p Policy) capped(d float64) time.Duration {
	if d < 0 {
		return 0
	}
	if p.Max > 0 && d > float64(p.Max) {
		return p.Max
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
