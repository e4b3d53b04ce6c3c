package main

import (
	"fmt"
	"time"

	"github.com/racedoh/racedoh/internal/reporter"
)

// addSuccessStats bumps the success counter as well as total duration which are used to generate
// reports. All event settings for the request are transferred to counters.
func (t *server) addSuccessStats(latency time.Duration, evs events) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.successCount++
	t.totalLatency += latency
	t.addEvents(evs)
}

// addFailureStats bumps the failure counter
func (t *server) addFailureStats(ix serFailureIndex, evs events) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failureCounters[ix]++
	t.addEvents(evs)
}

// addEvents must be called with the lock held
func (t *server) addEvents(evs events) {
	for ix := 0; ix < len(evs); ix++ {
		if evs[ix] {
			t.eventCounters[ix]++
		}
	}
}

func (t *server) addLogSuppressed() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logsSuppressed++
}

func (t *server) Name() string {
	return "Listener"
}

func (t *server) listenName() string {
	s := "("
	if cfg.tlsServerKeyFiles.NArg() > 0 {
		s += "HTTPS on "
	} else {
		s += "HTTP on "
	}
	s += t.listenAddress + ")"

	return s
}

/*

Reporter Output:
                                          Error Counters
req=1 ok=0 (0/0/0) al=0.000 errs=1 (1/0/0/0/0/0/0/0/0/0) sup=0 Concurrency=1 listenName
    ^    ^  ^ ^ ^      ^          ^  ^ ^ ^ ^ ^ ^ ^ ^ ^ ^      ^             ^
    |    |  | | |      |          |  | | | | | | | | | |      |             |
    |    |  | | |      |          |  | | | | | | | | | |      |             +--Peak inbound HTTP
    |    |  | | |      |          |  | | | | | | | | | |      +--Throttle log lines suppressed
    |    |  | | |      |          |  | | | | | | | | | +--Throttled
    |    |  | | |      |          |  | | | | | | | | +--QueryTooLarge
    |    |  | | |      |          |  | | | | | | | +--QueryParamMissing
    |    |  | | |      |          |  | | | | | | +--HTTPWriterFailed
    |    |  | | |      |          |  | | | | | +--GlobalFailure
    |    |  | | |      |          |  | | | | +--EmptyQuery
    |    |  | | |      |          |  | | | +--ClientTLSBad
    |    |  | | |      |          |  | | +--BodyReadError
    |    |  | | |      |          |  | +--BadQueryParamDecode
    |    |  | | |      |          |  +--BadMethod
    |    |  | | |      |          +--Total Bad Requests
    |    |  | | |      +--Average response latency
    |    |  | | +--evShared
    |    |  | +--evCacheHit
    |    |  +--evGet
    |    +--Good Requests
    +--Total Requests

*/

func (t *server) Report(resetCounters bool) string {
	if resetCounters {
		t.mu.Lock()
		defer t.mu.Unlock()
	} else {
		t.mu.RLock()
		defer t.mu.RUnlock()
	}

	errs := reporter.Sum(t.failureCounters[:])
	req := t.successCount + errs

	var al float64
	if t.successCount > 0 {
		al = t.totalLatency.Seconds() / float64(t.successCount)
	}
	s := fmt.Sprintf("req=%d ok=%d (%s) al=%0.3f errs=%d (%s) sup=%d Concurrency=%d %s\n",
		req, t.successCount, reporter.Counters(t.eventCounters[:]), al,
		errs, reporter.Counters(t.failureCounters[:]), t.logsSuppressed,
		t.ccTrk.Peak(resetCounters), t.listenName())

	if resetCounters {
		t.stats = stats{}
	}

	return s
}

