/*
Package ratelimit provides coarse per-client admission control. Each client identifier has a fixed
window counter: the first call starts a window, every call increments the counter and a call is
admitted while the counter does not exceed the configured limit. Once a window is older than the
configured window length the counter and window start are reset by the next call for that client.

A rejected call still consumes a slot so a client retrying a rejected request does not get a free
pass.

	rl, _ := ratelimit.New(ratelimit.Config{Limit: 250, Window: time.Minute})
	if !rl.Admit(clientIP, time.Now()) {
		return 429
	}

All methods are safe for concurrent use.
*/
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

const me = "ratelimit"

// Config is passed to New(). Zero values are replaced with the defaults.
type Config struct {
	Limit  int           // Admissions allowed per Window
	Window time.Duration // Length of the fixed window
}

var DefaultConfig = Config{Limit: 250, Window: 60 * time.Second}

// throttleEntry is the per-client counter.
type throttleEntry struct {
	count       int
	windowStart time.Time
}

type limiterStats struct {
	admitted int
	rejected int
	pruned   int
	peak     int // Peak number of tracked clients
}

// Limiter is the admission controller. Construct with New().
type Limiter struct {
	Config

	mu      sync.Mutex // Protects everything below here
	clients map[string]*throttleEntry
	limiterStats
}

// New constructs a Limiter.
func New(config Config) (*Limiter, error) {
	t := &Limiter{Config: config}
	if t.Limit < 0 {
		return nil, fmt.Errorf(me+": Limit is negative: %d", t.Limit)
	}
	if t.Window < 0 {
		return nil, fmt.Errorf(me+": Window is negative: %s", t.Window)
	}
	if t.Limit == 0 {
		t.Limit = DefaultConfig.Limit
	}
	if t.Window == 0 {
		t.Window = DefaultConfig.Window
	}

	t.clients = make(map[string]*throttleEntry)

	return t, nil
}

// Admit counts a request from clientID at time now and returns true if the client is within its
// limit for the current window.
func (t *Limiter) Admit(clientID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	te, ok := t.clients[clientID]
	if !ok {
		te = &throttleEntry{windowStart: now}
		t.clients[clientID] = te
		if len(t.clients) > t.peak {
			t.peak = len(t.clients)
		}
	}
	if now.Sub(te.windowStart) > t.Window {
		te.count = 0
		te.windowStart = now
	}

	te.count++
	if te.count > t.Limit {
		t.rejected++
		return false
	}
	t.admitted++

	return true
}

// Prune removes clients whose window has expired and returns the number removed. A pruned client
// is indistinguishable from an expired one on its next request, so this only bounds memory.
func (t *Limiter) Prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for k, te := range t.clients {
		if now.Sub(te.windowStart) > t.Window {
			delete(t.clients, k)
			removed++
		}
	}
	t.pruned += removed

	return removed
}

// Len returns the number of clients currently tracked.
func (t *Limiter) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.clients)
}

// Name implements the reporter interface
func (t *Limiter) Name() string {
	return "Rate Limiter"
}

/*
Report implements the reporter interface.

Output:

	req=260 ok=250 throttled=10 clients=1 pk=3 pruned=2 limit=250/1m0s
*/
func (t *Limiter) Report(resetCounters bool) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := fmt.Sprintf("req=%d ok=%d throttled=%d clients=%d pk=%d pruned=%d limit=%d/%s",
		t.admitted+t.rejected, t.admitted, t.rejected, len(t.clients), t.peak, t.pruned,
		t.Limit, t.Window)
	if resetCounters {
		t.limiterStats = limiterStats{peak: len(t.clients)}
	}

	return s
}
