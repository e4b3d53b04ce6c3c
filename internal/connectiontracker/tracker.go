/*
Package connectiontracker gathers per-listener connection statistics for the racedoh DoH front
end. DoH clients normally hold long-lived HTTP/2 connections and multiplex many queries over each
one, so the interesting numbers are how many connections are open, how long they stay open and
active, and how many queries are in flight on a single connection at its busiest.

A Tracker is driven from http.Server.ConnState and from the request handler:

	trk := connectiontracker.New(listenAddress)
	srv := &http.Server{ConnState: func(c net.Conn, s http.ConnState) {
		trk.ConnState(c.RemoteAddr().String(), time.Now(), s)
	}}

	func handler(w http.ResponseWriter, r *http.Request) {
		trk.RequestStart(r.RemoteAddr)
		defer trk.RequestDone(r.RemoteAddr)
		...
	}

Keys are the remote address of the connection. Since each Tracker belongs to a single listener the
remote address is sufficient to identify a connection.
*/
package connectiontracker

import (
	"net/http"
	"sync"
	"time"
)

type connection struct {
	opened      time.Time
	activeSince time.Time // Zero when idle
	activeFor   time.Duration
	inFlight    int // Requests currently multiplexed on this connection
	peakMux     int
}

// eix = Error IndeX into the errors array
type eixInt int

const (
	eixUnknownConn    eixInt = iota // State change for a connection never seen as New
	eixUnknownRequest               // Request on a connection never seen as New
	eixReplaced                     // New for a connection which is already open
	eixUnderflow                    // RequestDone without RequestStart
	eixClosedBusy                   // Closed or hijacked with requests still in flight
	eixUnknownState                 // A ConnState we do not know about
	eixArraySize
)

type trackerStats struct {
	peakConns int
	requests  int
	peakMux   int           // Highest per-connection multiplexing of closed connections
	connFor   time.Duration // Sum of all closed connection lifetimes
	activeFor time.Duration // Sum of all closed connection active periods
	errors    [eixArraySize]int
}

// Tracker is safe for concurrent use. Construct with New().
type Tracker struct {
	name string

	mu    sync.Mutex
	conns map[string]*connection
	trackerStats
}

// New constructs a Tracker which reports under the given listener name.
func New(name string) *Tracker {
	return &Tracker{name: name, conns: make(map[string]*connection)}
}

// ConnState records a connection state transition and returns false if the transition did not fit
// what the Tracker knows about the connection. Mismatches are counted and resolved in favour of the
// new state so that a missed transition never leaves a connection dangling.
func (t *Tracker) ConnState(key string, now time.Time, state http.ConnState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, found := t.conns[key]

	if state == http.StateNew {
		if found {
			t.errors[eixReplaced]++
		}
		t.conns[key] = &connection{opened: now}
		if len(t.conns) > t.peakConns {
			t.peakConns = len(t.conns)
		}
		return !found
	}

	if !found {
		t.errors[eixUnknownConn]++
		return false
	}

	switch state {
	case http.StateActive:
		c.activeSince = now
		return true

	case http.StateIdle:
		c.closeActivePeriod(now)
		return true

	case http.StateHijacked, http.StateClosed:
		c.closeActivePeriod(now)
		t.connFor += now.Sub(c.opened)
		t.activeFor += c.activeFor
		delete(t.conns, key)
		if c.inFlight > 0 {
			t.errors[eixClosedBusy]++
			return false
		}
		if c.peakMux > t.peakMux {
			t.peakMux = c.peakMux
		}
		return true
	}

	t.errors[eixUnknownState]++

	return false
}

func (c *connection) closeActivePeriod(now time.Time) {
	if !c.activeSince.IsZero() {
		c.activeFor += now.Sub(c.activeSince)
		c.activeSince = time.Time{}
	}
}

// RequestStart records the start of a request on the connection identified by key. It returns
// false if the connection is not known.
func (t *Tracker) RequestStart(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, found := t.conns[key]
	if !found {
		t.errors[eixUnknownRequest]++
		return false
	}

	t.requests++
	c.inFlight++
	if c.inFlight > c.peakMux {
		c.peakMux = c.inFlight
	}

	return true
}

// RequestDone undoes RequestStart.
func (t *Tracker) RequestDone(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, found := t.conns[key]
	if !found {
		t.errors[eixUnknownRequest]++
		return false
	}
	if c.inFlight == 0 {
		t.errors[eixUnderflow]++
		return false
	}
	c.inFlight--

	return true
}
