package supervisor

import (
	"math/rand"
	"time"
)

// Backoff produces exponentially growing reconnect delays with additive
// jitter. The base sequence is non-decreasing up to Max; jitter only ever
// extends a delay, so consecutive delays never shrink below the base.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter is the fraction of the base delay added at random, in [0, 1].
	Jitter float64

	cur time.Duration
	rnd *rand.Rand
}

// NewBackoff creates a Backoff seeded from the current time.
func NewBackoff(initial, max time.Duration, multiplier, jitter float64) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	if multiplier < 1 {
		multiplier = 2.0
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return &Backoff{
		Initial:    initial,
		Max:        max,
		Multiplier: multiplier,
		Jitter:     jitter,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay to wait before the next attempt and advances the
// base sequence.
func (b *Backoff) Next() time.Duration {
	if b.cur == 0 {
		b.cur = b.Initial
	}
	base := b.cur

	next := time.Duration(float64(b.cur) * b.Multiplier)
	if next > b.Max {
		next = b.Max
	}
	b.cur = next

	if b.Jitter == 0 {
		return base
	}
	return base + time.Duration(b.rnd.Float64()*b.Jitter*float64(base))
}

// Current returns the base delay the next call to Next will use.
func (b *Backoff) Current() time.Duration {
	if b.cur == 0 {
		return b.Initial
	}
	return b.cur
}

// Reset restarts the sequence from the initial delay.
func (b *Backoff) Reset() {
	b.cur = 0
}
