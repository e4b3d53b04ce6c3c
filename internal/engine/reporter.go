package engine

import (
	"fmt"
)

func (t *Engine) addState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.states[s]++
}

func (t *Engine) addBadQuery() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.badQueries++
}

func (t *Engine) addShared() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.shared++
}

func (t *Engine) Name() string {
	return "Engine"
}

// Report shows how many requests reached each state plus malformed queries, races shared by
// concurrent identical queries and the peak number of races in flight.
func (t *Engine) Report(resetCounters bool) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.states
	str := fmt.Sprintf("rcvd=%d throttled=%d admitted=%d hit=%d miss=%d served=%d failed=%d badq=%d shared=%d pkRaces=%d",
		s[StateReceived], s[StateThrottled], s[StateAdmitted], s[StateCacheHit], s[StateCacheMiss],
		s[StateServed], s[StateGlobalFailure], t.badQueries, t.shared,
		t.races.Peak(resetCounters))

	if resetCounters {
		t.stats = stats{}
	}

	return str
}
