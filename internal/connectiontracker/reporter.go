package connectiontracker

import (
	"fmt"
	"time"

	"github.com/racedoh/racedoh/internal/reporter"
)

// Name implements reporter.Reporter
func (t *Tracker) Name() string {
	return "Conn Track"
}

/*
Report implements reporter.Reporter. Lifetimes are only accumulated as connections close so a
handful of long-lived HTTP/2 connections can show zero for a number of reporting periods.

curr=3 pk=5 reqs=1042 pkMux=12 errs=0 (0/0/0/0/0/0) connFor=310.4s activeFor=28.1s 127.0.0.1:443
     ^    ^      ^          ^       ^  ^ ^ ^ ^ ^ ^          ^                ^       ^
     |    |      |          |       |  | | | | | |          |                |       |
     |    |      |          |       |  | | | | | |          |                |       +--Listener
     |    |      |          |       |  | | | | | |          |                +--Time closed conns were active
     |    |      |          |       |  | | | | | |          +--Lifetime of closed conns
     |    |      |          |       |  | | | | | +--Unknown state
     |    |      |          |       |  | | | | +--Closed with requests in flight
     |    |      |          |       |  | | | +--RequestDone underflow
     |    |      |          |       |  | | +--Replaced open conn
     |    |      |          |       |  | +--Request on unknown conn
     |    |      |          |       |  +--State change on unknown conn
     |    |      |          |       +--Total errors
     |    |      |          +--Peak requests multiplexed on one closed conn
     |    |      +--Requests started
     |    +--Peak open conns
     +--Currently open conns
*/
func (t *Tracker) Report(resetCounters bool) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	report := fmt.Sprintf("curr=%d pk=%d reqs=%d pkMux=%d errs=%d (%s) connFor=%0.1fs activeFor=%0.1fs %s",
		len(t.conns), t.peakConns, t.requests, t.peakMux,
		reporter.Sum(t.errors[:]), reporter.Counters(t.errors[:]),
		t.connFor.Round(time.Millisecond*100).Seconds(), t.activeFor.Round(time.Millisecond*100).Seconds(),
		t.name)
	if resetCounters {
		t.trackerStats = trackerStats{peakConns: len(t.conns)}
	}

	return report
}
