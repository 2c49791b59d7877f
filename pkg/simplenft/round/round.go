// Package round tracks the chain's fixed-length rounds, used as the ttl of
// per-address listings that change every round.
package round

import "time"

// DefaultDuration is the length of one round
const DefaultDuration = 6 * time.Second

// Clock computes round boundaries from the genesis time
type Clock struct {
	genesis  time.Time
	duration time.Duration
	now      func() time.Time
}

// Option configures a Clock
type Option func(*Clock)

// WithNow replaces time.Now, for tests
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		c.now = now
	}
}

// NewClock creates a round clock. A non-positive duration falls back to
// DefaultDuration.
func NewClock(genesis time.Time, duration time.Duration, opts ...Option) *Clock {
	if duration <= 0 {
		duration = DefaultDuration
	}
	c := &Clock{genesis: genesis, duration: duration, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RemainingUntilNextRound returns the time left in the current round,
// truncated to whole seconds. At an exact round boundary it returns 0.
func (c *Clock) RemainingUntilNextRound() time.Duration {
	round := int64(c.duration / time.Second)
	if round <= 0 {
		round = 1
	}
	elapsed := int64(c.now().Sub(c.genesis).Round(time.Second) / time.Second)
	remaining := round - elapsed%round
	if elapsed < 0 {
		remaining = -elapsed % round
	}
	if remaining == round {
		remaining = 0
	}
	return time.Duration(remaining) * time.Second
}
