// Package clock provides the injectable time source used by the queue and
// lock repositories. Every time comparison in the state-transition code
// goes through this abstraction so tests can drive stuck-in-progress,
// failed-cutoff, and lock-expiry scenarios deterministically instead of
// sleeping on the wall clock.
package clock

import "github.com/benbjohnson/clock"

// Clock is a source of millisecond-granularity wall-clock timestamps.
// Production code uses New(), which wraps real time; tests use
// clock.NewMock() directly and advance it explicitly.
type Clock = clock.Clock

// New returns a Clock backed by the real system clock.
func New() Clock {
	return clock.New()
}
