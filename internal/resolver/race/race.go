/*
Package race (aka) internal/resolver/race is a resolver implementation which sends each query to
several upstream DoH servers at the same time and returns the first good response.

The servers raced are the Fanout highest scoring servers in the registry at the time of the
query. Every attempt feeds its outcome back to the registry so servers which answer well drift to
the top and servers which fail drift out of the race.

Typical usage is pretty straightforward. Create the resolver once then use it to resolve raw DNS
queries.

	reg, _ := registry.New(registry.Config{}, urls)
	res, _ := race.New(race.Config{Fanout: 8}, reg, &http.Client{})
	for {
		reply, meta, err := res.Resolve(ctx, getQuery())
		if err == nil {
			handleReply(reply, meta.Latency)
		}
	}

Once a winner emerges the remaining attempts are cancelled. Any of them that completed before the
cancellation took effect still have their outcome recorded against their server, but an attempt
which ends because it was cancelled says nothing about its server and is not scored.
*/
package race

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/racedoh/racedoh/internal/constants"
	"github.com/racedoh/racedoh/internal/registry"
	"github.com/racedoh/racedoh/internal/resolver"
)

// HTTPClientDo is an interface which implements http.Client.Do() - the only http.Client method used
// by the race resolver. It mainly exists so we can supply a mock http.Client for testing.
type HTTPClientDo interface {
	Do(*http.Request) (*http.Response, error)
}

// ErrAllFailed is wrapped by the error Resolve() returns when every raced server failed.
var ErrAllFailed = errors.New("all raced servers failed")

const me = "resolver/race"

// rgx = Race General error indeX into resolver errors array
type rgxInt int

const (
	rgxAllFailed rgxInt = iota
	rgxContextDone // Caller gave up before any server answered
	rgxArraySize
)

// rex = Race Error indeX into per-server errors array
type rexInt int

const (
	rexCreateHTTPRequest rexInt = iota
	rexDoRequest
	rexNonStatusOk
	rexResponseReadAll
	rexResponseTooLarge
	rexCancelled // Lost the race and was cancelled - not scored
	rexArraySize
)

type serverStats struct {
	success      int
	wins         int
	totalLatency time.Duration
	failures     [rexArraySize]int
}

// server tracks the statistics of each registry node for reporter purposes.
type server struct {
	name string
	serverStats
}

func (t *server) resetCounters() {
	t.serverStats = serverStats{}
}

type resolverStats struct {
	races    int
	failures [rgxArraySize]int
}

// Racer implements resolver.Resolver. Construct with New().
type Racer struct {
	consts constants.Constants
	config Config

	httpClient HTTPClientDo
	registry   *registry.Registry

	mu sync.RWMutex // Protects everything below here

	servers []*server // Indexed by registry node index
	resolverStats
}

// attemptResult is what each racing goroutine reports back.
type attemptResult struct {
	node    registry.Node
	body    []byte
	latency time.Duration
	err     error
}

// New creates a Racer over the supplied registry. If httpClient is nil http.DefaultClient is used.
func New(config Config, reg *registry.Registry, httpClient HTTPClientDo) (*Racer, error) {
	if reg == nil {
		return nil, errors.New(me + ": No registry supplied")
	}
	t := &Racer{config: config, registry: reg, httpClient: httpClient}
	if t.httpClient == nil {
		t.httpClient = http.DefaultClient
	}
	t.consts = constants.Get()

	if t.config.Fanout < 0 {
		return nil, fmt.Errorf(me+": Fanout is negative: %d", t.config.Fanout)
	}
	if t.config.AttemptTimeout < 0 {
		return nil, fmt.Errorf(me+": AttemptTimeout is negative: %s", t.config.AttemptTimeout)
	}
	if t.config.Fanout == 0 {
		t.config.Fanout = t.consts.DefaultFanout
	}
	if t.config.AttemptTimeout == 0 {
		t.config.AttemptTimeout = t.consts.DefaultAttemptTimeout
	}
	if len(t.config.UserAgent) == 0 {
		t.config.UserAgent = t.consts.PackageName + "/" + t.consts.Version + " (" + t.consts.PackageURL + ")"
	}

	for _, n := range reg.Nodes() {
		t.servers = append(t.servers, &server{name: n.URL})
	}

	return t, nil
}

// Fanout returns the effective number of servers raced per query.
func (t *Racer) Fanout() int {
	if t.config.Fanout > t.registry.Len() {
		return t.registry.Len()
	}

	return t.config.Fanout
}

// Resolve races the query across the top scoring servers and returns the first good response. An
// error wrapping ErrAllFailed is returned if every server failed.
func (t *Racer) Resolve(ctx context.Context, query []byte) ([]byte, *resolver.ResponseMetaData, error) {
	candidates := t.registry.TopK(t.config.Fanout)

	// A buffered channel sized to the fan-out means no attempt blocks on send even after we have
	// returned to the caller with a winner.

	raceCtx, cancel := context.WithCancel(ctx)
	results := make(chan attemptResult, len(candidates))
	for _, n := range candidates {
		go func(n registry.Node) {
			results <- t.attempt(raceCtx, n, query)
		}(n)
	}

	t.addRace()

	var lastErr error
	for ix := 0; ix < len(candidates); ix++ {
		r := <-results
		if r.err == nil {
			cancel() // Best-effort release of the losers' upstream connections
			t.addWin(r.node.Index)
			return r.body, &resolver.ResponseMetaData{
				Latency:         r.latency,
				PayloadSize:     len(r.body),
				ServerTries:     len(candidates),
				Failures:        ix,
				FinalServerUsed: r.node.URL,
			}, nil
		}
		lastErr = r.err
	}
	cancel()

	if ctx.Err() != nil {
		t.addGeneralFailure(rgxContextDone)
	} else {
		t.addGeneralFailure(rgxAllFailed)
	}

	return nil, nil, fmt.Errorf(me+": %w (%d servers) last error: %s", ErrAllFailed, len(candidates), lastErr)
}

// attempt performs one DoH POST to one server and scores the outcome. It runs in its own
// go-routine and may well complete after Resolve() has returned.
func (t *Racer) attempt(raceCtx context.Context, n registry.Node, query []byte) attemptResult {
	ctx, cancel := context.WithTimeout(raceCtx, t.config.AttemptTimeout)
	defer cancel()

	startTime := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(query))
	if err != nil {
		return t.failUnlessCancelled(raceCtx, n, rexCreateHTTPRequest, err)
	}

	req.Header.Set(t.consts.AcceptHeader, t.consts.Rfc8484AcceptValue)      // RFC SHOULD
	req.Header.Set(t.consts.ContentTypeHeader, t.consts.Rfc8484AcceptValue) // RFC MUST
	req.Header.Set(t.consts.UserAgentHeader, t.config.UserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return t.failUnlessCancelled(raceCtx, n, rexDoRequest, err)
	}
	latency := time.Since(startTime)

	defer resp.Body.Close() // net/http advises this Close() to avoid a resource leak

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return t.failScored(n, rexNonStatusOk, fmt.Errorf("Bad HTTP Status: %s", resp.Status))
	}

	maxSize := int64(t.consts.MaximumViableDNSMessage)
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return t.failUnlessCancelled(raceCtx, n, rexResponseReadAll, fmt.Errorf("Body Read Error: %w", err))
	}
	if int64(len(body)) > maxSize {
		return t.failScored(n, rexResponseTooLarge,
			fmt.Errorf("Response exceeds maximum viable DNS message of %d", maxSize))
	}

	t.registry.RecordSuccess(n.Index, latency)
	t.addSuccessStats(n.Index, latency)

	return attemptResult{node: n, body: body, latency: latency}
}

// failUnlessCancelled handles failures which cancellation can cause. If raceCtx is done the
// failure is a consequence of losing the race (or the caller giving up) rather than a fault of the
// server so it is counted as rexCancelled but not scored.
func (t *Racer) failUnlessCancelled(raceCtx context.Context, n registry.Node, rex rexInt, err error) attemptResult {
	if raceCtx.Err() != nil {
		t.addServerFailure(n.Index, rexCancelled)
		return attemptResult{node: n, err: fmt.Errorf("%s: %w", n.URL, err)}
	}

	return t.failScored(n, rex, err)
}

// failScored scores and counts a failure which is the server's fault whatever the state of the
// race, such as a bad status or an oversized response.
func (t *Racer) failScored(n registry.Node, rex rexInt, err error) attemptResult {
	t.registry.RecordFailure(n.Index)
	t.addServerFailure(n.Index, rex)

	return attemptResult{node: n, err: fmt.Errorf("%s: %w", n.URL, err)}
}
