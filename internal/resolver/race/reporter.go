package race

import (
	"fmt"
	"time"

	"github.com/racedoh/racedoh/internal/reporter"
)

// addSuccessStats tracks successful attempts, whether they won or not.
func (t *Racer) addSuccessStats(ix int, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.servers[ix]
	s.success++
	s.totalLatency += latency
}

// addWin tracks which server supplied the response.
func (t *Racer) addWin(ix int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.servers[ix].wins++
}

func (t *Racer) addRace() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.races++
}

// addGeneralFailure tracks failed races that are not server specific.
func (t *Racer) addGeneralFailure(rgx rgxInt) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resolverStats.failures[rgx]++
}

// addServerFailure tracks failed attempts against a specific server.
func (t *Racer) addServerFailure(ix int, rex rexInt) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.servers[ix].failures[rex]++
}

func (t *Racer) Name() string {
	return "Race"
}

/*

Report returns a multi-line string showing stats suitable for printing to a log file. Reset counters
if resetCounters is true. Servers which have not been raced since the last reset are omitted.

Output:

Totals: races=305 won=301 errs=4 (3/1)
        ^         ^       ^       ^ ^
        |         |       |       | |
        |         |       |       | +--Caller gave up
        |         |       |       +--All servers failed
        |         |       +--Total failed races
        |         +--Races with a winner
        +---Total races

Server: ok=301 won=250 al=0.054 errs=9 (0/4/2/0/0/3) URL
        ^      ^       ^        ^       ^ ^ ^ ^ ^ ^  ^
        |      |       |        |       | | | | | |  |
        |      |       |        |       | | | | | |  +-- Server URL
        |      |       |        |       | | | | | +--Cancelled after losing
        |      |       |        |       | | | | +--ResponseTooLarge
        |      |       |        |       | | | +--ResponseReadAll
        |      |       |        |       | | +--NonStatusOk
        |      |       |        |       | +--DoRequest
        |      |       |        |       +--CreateHTTPRequest
        |      |       |        +--Per-Server Errors
        |      |       +--Average latency of good attempts
        |      +--Attempts which supplied the response
        +--Good attempts

*/
func (t *Racer) Report(resetCounters bool) string {
	if resetCounters {
		t.mu.Lock()
		defer t.mu.Unlock()
	} else {
		t.mu.RLock()
		defer t.mu.RUnlock()
	}

	serverReport := ""
	won := 0
	for _, s := range t.servers {
		won += s.wins
		sErrs := reporter.Sum(s.failures[:])
		if s.success+sErrs == 0 {
			continue
		}
		var al float64
		if s.success > 0 {
			al = s.totalLatency.Seconds() / float64(s.success)
		}
		serverReport += fmt.Sprintf("Server: ok=%d won=%d al=%0.3f errs=%d (%s) %s\n",
			s.success, s.wins, al, sErrs, reporter.Counters(s.failures[:]), s.name)
		if resetCounters {
			s.resetCounters()
		}
	}

	errs := reporter.Sum(t.resolverStats.failures[:])
	mainReport := fmt.Sprintf("Totals: races=%d won=%d errs=%d (%s)\n",
		t.races, won, errs, reporter.Counters(t.resolverStats.failures[:]))

	if resetCounters {
		t.resolverStats = resolverStats{}
	}

	return mainReport + serverReport
}

