package monitor

import (
	"math"
	"math/rand"
	"time"
)

const jitter = 0.25

// Backoff stretches the wait after failed cycles: exponential from min,
// capped at max, with ±25% jitter.
type Backoff struct {
	min, max time.Duration
	attempt  int
	rand     func() float64
}

// NewBackoff creates a new Backoff.
func NewBackoff(min, max time.Duration) *Backoff {
	if max < min {
		max = min
	}
	return &Backoff{min: min, max: max, rand: rand.Float64}
}

// Reset resets the backoff counter (call after a successful cycle).
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Next returns the delay before the next attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	// Exponential: min * 2^attempt, capped at max
	base := float64(b.min) * math.Pow(2, float64(b.attempt))
	if base > float64(b.max) {
		base = float64(b.max)
	}

	j := base * jitter * (2*b.rand() - 1)
	d := time.Duration(base + j)
	if d < b.min {
		d = b.min
	}
	if d > b.max {
		d = b.max
	}

	b.attempt++
	return d
}
