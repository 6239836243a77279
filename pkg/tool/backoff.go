package tool

import "time"

// Backoff is the shared exponential-backoff policy used by C3's retries,
// C10's rollout polling, and C11's health-check retries. Grounded on the
// Backoff struct in original_source/cli/src/commands/flux.rs: start at a
// base delay, double each step, cap at a max delay.
type Backoff struct {
	Delay time.Duration
	Max   time.Duration
}

// NewBackoff returns a Backoff starting at base, capped at max.
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{Delay: base, Max: max}
}

// Next returns the delay to sleep for and advances the backoff for next
// time, doubling up to Max.
func (b *Backoff) Next() time.Duration {
	d := b.Delay
	b.Delay *= 2
	if b.Delay > b.Max {
		b.Delay = b.Max
	}
	return d
}

// Reset restores the backoff to its initial delay; unused by the fixed
// policies here but kept for callers that retry multiple independent
// operations with one Backoff value.
func (b *Backoff) Reset(base time.Duration) {
	b.Delay = base
}
