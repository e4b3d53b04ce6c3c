package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/racedoh/racedoh/internal/cache"
	"github.com/racedoh/racedoh/internal/concurrencytracker"
	"github.com/racedoh/racedoh/internal/ratelimit"
	"github.com/racedoh/racedoh/internal/resolver"

	"golang.org/x/sync/singleflight"
)

const me = "engine"

var (
	ErrClientInput   = errors.New("malformed query")
	ErrThrottled     = errors.New("client throttled")
	ErrGlobalFailure = errors.New("all upstream resolvers failed")
)

// State is the stage a request has reached.
type State int

const (
	StateReceived State = iota
	StateThrottled
	StateAdmitted
	StateCacheHit
	StateCacheMiss
	StateRacing
	StateServed
	StateGlobalFailure
	stateArraySize
)

var stateNames = [stateArraySize]string{
	"Received", "Throttled", "Admitted", "CacheHit", "CacheMiss", "Racing", "Served", "GlobalFailure",
}

func (s State) String() string {
	if s < 0 || s >= stateArraySize {
		return fmt.Sprintf("State(%d)", int(s))
	}

	return stateNames[s]
}

// Config is passed to New(). Now defaults to time.Now and is mainly replaced by tests.
type Config struct {
	Now func() time.Time
}

// Answer is the successful result of a query.
type Answer struct {
	Body     []byte
	State    State         // StateCacheHit or StateServed
	CacheHit bool          // Body came from the cache
	Latency  time.Duration // Of the winning upstream attempt. Zero for cache hits
	Winner   string        // URL of the winning upstream. Empty for cache hits
	Shared   bool          // Body came from a race started by a concurrent identical query

	Fingerprint cache.Fingerprint
}

type raceResult struct {
	body []byte
	meta *resolver.ResponseMetaData
}

// Engine is the query handler. Construct with New().
type Engine struct {
	config   Config
	limiter  *ratelimit.Limiter
	cache    *cache.Cache
	resolver resolver.Resolver
	group    singleflight.Group
	races    concurrencytracker.Counter // Distinct races in flight

	mu sync.Mutex // Protects everything below here
	stats
}

type stats struct {
	states     [stateArraySize]int
	badQueries int
	shared     int
}

// New binds the supplied components. None of them may be nil.
func New(config Config, limiter *ratelimit.Limiter, c *cache.Cache, res resolver.Resolver) (*Engine, error) {
	switch {
	case limiter == nil:
		return nil, errors.New(me + ": No rate limiter supplied")
	case c == nil:
		return nil, errors.New(me + ": No cache supplied")
	case res == nil:
		return nil, errors.New(me + ": No resolver supplied")
	}

	t := &Engine{config: config, limiter: limiter, cache: c, resolver: res}
	if t.config.Now == nil {
		t.config.Now = time.Now
	}

	return t, nil
}

// Admit applies the rate limit to clientID. Every call counts against the client, including those
// which are rejected.
func (t *Engine) Admit(clientID string) error {
	t.addState(StateReceived)
	if !t.limiter.Admit(clientID, t.config.Now()) {
		t.addState(StateThrottled)
		return fmt.Errorf("%w: %s", ErrThrottled, clientID)
	}
	t.addState(StateAdmitted)

	return nil
}

// Answer returns the response to query from the cache or, failing that, from a race. The query is
// treated as opaque bytes; the only validation is that it is not empty.
func (t *Engine) Answer(ctx context.Context, query []byte) (*Answer, error) {
	if len(query) == 0 {
		t.addBadQuery()
		return nil, fmt.Errorf("%w: empty query", ErrClientInput)
	}

	fp := t.cache.Fingerprint(query)
	if e, ok := t.cache.Get(fp, t.config.Now()); ok {
		t.addState(StateCacheHit)
		return &Answer{Body: e.Body, State: StateCacheHit, CacheHit: true, Fingerprint: fp}, nil
	}
	t.addState(StateCacheMiss)
	t.addState(StateRacing)

	// The race outlives any single waiter so one impatient client cannot fail the others sharing
	// it. Per-attempt timeouts in the resolver bound how long it can run.

	raceCtx := context.WithoutCancel(ctx)
	v, err, shared := t.group.Do(fp.String(), func() (interface{}, error) {
		t.races.Add()
		defer t.races.Done()
		body, meta, err := t.resolver.Resolve(raceCtx, query)
		if err != nil {
			return nil, err
		}
		t.cache.Put(fp, body, t.config.Now())
		return raceResult{body: body, meta: meta}, nil
	})
	if shared {
		t.addShared()
	}
	if err != nil {
		t.addState(StateGlobalFailure)
		return nil, fmt.Errorf("%w: %w", ErrGlobalFailure, err)
	}

	rr := v.(raceResult)
	t.addState(StateServed)
	a := &Answer{Body: rr.body, State: StateServed, Shared: shared, Fingerprint: fp}
	if rr.meta != nil {
		a.Latency = rr.meta.Latency
		a.Winner = rr.meta.FinalServerUsed
	}

	return a, nil
}

// Resolve is Admit() followed by Answer().
func (t *Engine) Resolve(ctx context.Context, clientID string, query []byte) (*Answer, error) {
	if err := t.Admit(clientID); err != nil {
		return nil, err
	}

	return t.Answer(ctx, query)
}

// StatusCode maps an error returned by the engine to the HTTP status the front end returns.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrClientInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrGlobalFailure):
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}
