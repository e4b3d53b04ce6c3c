/*
Package concurrencytracker counts how many of something are in flight and remembers the peak over
each reporting period. racedoh uses it for concurrent DoH requests per listener and for concurrent
upstream races in the engine. Comparing the two shows how much work query coalescing saves.

	var inFlight concurrencytracker.Counter

	func serve() {
		inFlight.Add()
		defer inFlight.Done()
		...
	}

	fmt.Println("Peak", inFlight.Peak(true))
*/
package concurrencytracker

import (
	"sync"
)

// Counter is ready to use in its zero state.
type Counter struct {
	mu      sync.Mutex
	current int
	peak    int
}

// Add increments the in-flight count and returns true if it set a new peak.
func (t *Counter) Add() (increased bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current++
	if t.current > t.peak {
		t.peak = t.current
		increased = true
	}

	return
}

// Done decrements the in-flight count. A Done() without a matching Add() is a programming error and
// panics.
func (t *Counter) Done() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == 0 {
		panic("concurrencytracker: Done() lacks matching Add()")
	}
	t.current--
}

// Current returns the number presently in flight.
func (t *Counter) Current() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.current
}

// Peak returns the highest in-flight count since the last reset. If resetCounters is true the peak
// is then lowered to the current count, which is never reset. The effect of a reset is only visible
// to subsequent calls.
func (t *Counter) Peak(resetCounters bool) (peak int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	peak = t.peak
	if resetCounters {
		t.peak = t.current
	}

	return
}
