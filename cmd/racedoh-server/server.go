package main

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/racedoh/racedoh/internal/concurrencytracker"
	"github.com/racedoh/racedoh/internal/connectiontracker"
	"github.com/racedoh/racedoh/internal/dnsutil"
	"github.com/racedoh/racedoh/internal/engine"

	"golang.org/x/time/rate"
)

type serFailureIndex int

const ( // ser = Server ERror index into failure counter array
	serBadMethod serFailureIndex = iota
	serBadQueryParamDecode
	serBodyReadError
	serClientTLSBad
	serEmptyQuery
	serGlobalFailure
	serHTTPWriterFailed
	serQueryParamMissing
	serQueryTooLarge
	serThrottled
	serArraySize
)

type evIndex int

const ( // ev = EVent index into eventCounters
	evGet evIndex = iota // GET vs POST
	evCacheHit
	evShared // Served by a race started by a concurrent identical query
	evListSize
)

type events [evListSize]bool

type stats struct {
	successCount    int               // Queries that ran to completion without error
	totalLatency    time.Duration     // Duration of all successful queries
	eventCounters   [evListSize]int   // Events that occur during the course of a query
	failureCounters [serArraySize]int // Errors that stop a query from progressing
	logsSuppressed  int               // Throttle log lines dropped
}

// Throttle log lines are themselves limited so an abusive client cannot flood the log.
const (
	throttleLogRate  = rate.Limit(5) // Per second
	throttleLogBurst = 20
)

type server struct {
	stdout        io.Writer
	engine        *engine.Engine
	listenAddress string
	server        *http.Server               // Keep a copy solely for the stop() method
	ccTrk         concurrencytracker.Counter // Track peak concurrent server requests
	connTrk       *connectiontracker.Tracker
	throttleLog   *rate.Limiter

	mu sync.RWMutex // Protects everything below here
	stats
}

func newServer(stdout io.Writer, eng *engine.Engine, listenAddress string) *server {
	return &server{stdout: stdout, engine: eng, listenAddress: listenAddress,
		throttleLog: rate.NewLimiter(throttleLogRate, throttleLogBurst)}
}

// httpLogCapture helps us capture errors logged by net/http so as to record HTTPS client
// certificate failures. Unfortunately there is no well defined way of detecting a client connecting
// with an invalid certificate so we basically scrape the error messages that the http package logs.
type httpLogCapture struct { // I/O Writer to statisfy log.New()
	server *server
	stdout io.Writer
	logit  bool
}

func (t *httpLogCapture) Write(data []byte) (int, error) {
	t.server.addFailureStats(serClientTLSBad, events{})
	if t.logit {
		fmt.Fprint(t.stdout, "Client TLS Error: ")
		return t.stdout.Write(data)
	}

	return len(data), nil
}

// start starts up a HTTP/HTTPS Server and writes to errorChan at server exit.
//
// tlsConfig is modified by the h2 start-up code prior to net/http cloning it so each server gets
// its own clone otherwise we create a race.
func (t *server) start(tlsConfig *tls.Config, errorChan chan error, wg *sync.WaitGroup) {
	t.server = &http.Server{
		Addr:     t.listenAddress,
		ErrorLog: log.New(&httpLogCapture{server: t, stdout: t.stdout, logit: cfg.logTLSErrors}, "", 0),
		Handler:  t.newRouter(),
	}
	if tlsConfig != nil {
		t.server.TLSConfig = tlsConfig.Clone()
	}

	t.connTrk = connectiontracker.New(t.listenName())
	t.server.ConnState = func(c net.Conn, state http.ConnState) {
		t.connTrk.ConnState(c.RemoteAddr().String(), time.Now(), state)
	}

	wg.Add(1)
	go func() {
		if cfg.tlsServerKeyFiles.NArg() > 0 {
			errorChan <- t.server.ListenAndServeTLS("", "") // Keys and certs are in tlsConfig
		} else {
			errorChan <- t.server.ListenAndServe() // Only returns on start-up error or shutdown request
		}
		wg.Done()
	}()
}

// newRouter creates the routing infrastructure independently of the server for ease of testing.
func (t *server) newRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(consts.Rfc8484Path, func(w http.ResponseWriter, r *http.Request) {
		t.serveDoH(w, r)
	})

	return mux
}

// serveDoH is called once per query in a newly created go-routine. The rate limiter runs before
// anything else so every request counts against the client, well-formed or not.
func (t *server) serveDoH(writer http.ResponseWriter, httpReq *http.Request) {
	var evs events

	t.ccTrk.Add() // Track peak concurrency
	defer t.ccTrk.Done()

	if t.connTrk != nil {
		t.connTrk.RequestStart(httpReq.RemoteAddr) // Track multiplexing per-connection
		defer t.connTrk.RequestDone(httpReq.RemoteAddr)
	}

	if cfg.logHTTPIn {
		fmt.Fprintln(t.stdout, "HI:"+httpReq.RemoteAddr, httpReq.Method, httpReq.URL.String())
	}

	clientID := t.clientID(httpReq)
	if err := t.engine.Admit(clientID); err != nil {
		t.logThrottled(clientID)
		t.error(writer, httpReq.RemoteAddr, engine.StatusCode(err), "Error: "+err.Error())
		t.addFailureStats(serThrottled, evs)
		return
	}

	// Extract the query. POST has it in the body, GET has it base64url encoded in the query param.

	body, serx, httpStatusCode, errMsg := t.validateRequest(httpReq)
	if len(errMsg) > 0 {
		t.error(writer, httpReq.RemoteAddr, httpStatusCode, errMsg)
		t.addFailureStats(serx, evs)
		return
	}

	if httpReq.Method == http.MethodGet {
		evs[evGet] = true
		body, serx, errMsg = t.decodeQueryParam(httpReq)
		if len(errMsg) > 0 {
			t.error(writer, httpReq.RemoteAddr, http.StatusBadRequest, errMsg)
			t.addFailureStats(serx, evs)
			return
		}
	}

	if uint(len(body)) > consts.MaximumViableDNSMessage {
		msg := fmt.Sprintf("Error: Query length %d exceeds maximum of %d",
			len(body), consts.MaximumViableDNSMessage)
		t.error(writer, httpReq.RemoteAddr, http.StatusBadRequest, msg)
		t.addFailureStats(serQueryTooLarge, evs)
		return
	}

	if cfg.logClientIn {
		fmt.Fprintln(t.stdout, "CI:"+compactBytes(body))
	}

	// Resolve from cache or race

	startTime := time.Now() // Track latency
	answer, err := t.engine.Answer(httpReq.Context(), body)
	if err != nil {
		sc := engine.StatusCode(err)
		if sc == http.StatusBadRequest {
			serx = serEmptyQuery
		} else {
			serx = serGlobalFailure
		}
		if cfg.logRace {
			fmt.Fprintln(t.stdout, "RA:Failed", err)
		}
		t.error(writer, httpReq.RemoteAddr, sc, "Error: "+err.Error())
		t.addFailureStats(serx, evs)
		return
	}
	evs[evCacheHit] = answer.CacheHit
	evs[evShared] = answer.Shared

	if cfg.logRace && !answer.CacheHit {
		fmt.Fprintln(t.stdout, "RA:"+answer.Fingerprint.String(), answer.Winner,
			answer.Latency.Milliseconds(), "ms shared:", answer.Shared)
	}

	// Return message to caller

	duration := time.Now().Sub(startTime)
	writer.Header().Set(consts.ContentTypeHeader, consts.Rfc8484AcceptValue)
	if answer.CacheHit {
		writer.Header().Set(consts.CacheHeader, consts.CacheHitValue)
	} else {
		writer.Header().Set(consts.RacerTimeHeader,
			fmt.Sprintf("%d%s", answer.Latency.Milliseconds(), consts.RacerTimeSuffix))
	}

	_, err = writer.Write(answer.Body)
	if err != nil {
		msg := fmt.Sprintf("writer.Write(body) failed %s", err.Error())
		t.error(writer, httpReq.RemoteAddr, http.StatusServiceUnavailable, msg)
		if cfg.logClientOut {
			fmt.Fprintln(t.stdout, "DE:"+msg)
		}
		t.addFailureStats(serHTTPWriterFailed, evs)
		return
	}

	t.addSuccessStats(duration, evs)
	if cfg.logClientOut {
		fmt.Fprintln(t.stdout, "CO:"+compactBytes(answer.Body), answer.CacheHit, answer.Winner, duration)
	}
	if cfg.logHTTPOut {
		fmt.Fprintln(t.stdout, "HO:", httpReq.RemoteAddr, "200 Ok", len(answer.Body), duration)
	}
}

// clientID identifies the client for rate limiting purposes. If a trusted client IP header is
// configured and present it wins, otherwise the IP of the HTTP peer is used.
func (t *server) clientID(httpReq *http.Request) string {
	if len(cfg.clientIPHeader) > 0 {
		if v := strings.TrimSpace(httpReq.Header.Get(cfg.clientIPHeader)); len(v) > 0 {
			return v
		}
	}
	host, _, err := net.SplitHostPort(httpReq.RemoteAddr)
	if err != nil {
		return httpReq.RemoteAddr
	}

	return host
}

// logThrottled prints a throttle line unless too many have been printed recently.
func (t *server) logThrottled(clientID string) {
	if !cfg.logThrottle {
		return
	}
	if !t.throttleLog.Allow() {
		t.addLogSuppressed()
		return
	}
	fmt.Fprintln(t.stdout, "TH:"+clientID)
}

// compactBytes only bothers decoding something which could plausibly be a DNS message.
func compactBytes(b []byte) string {
	if uint(len(b)) < consts.MinimumViableDNSMessage {
		return fmt.Sprintf("short(%d)", len(b))
	}

	return dnsutil.CompactBytesString(b)
}

// validateRequest does some preliminary decoding of the HTTP request and returns the POST body, if
// any. Returns serx and a non-empty errMsg if any errors occur.
func (t *server) validateRequest(httpReq *http.Request) (body []byte, serx serFailureIndex, hsc int, errMsg string) {

	// Check Method first

	if httpReq.Method != http.MethodPost && httpReq.Method != http.MethodGet {
		serx = serBadMethod
		hsc = http.StatusMethodNotAllowed
		errMsg = fmt.Sprintf("Error: Expected Method '%s' or '%s', not '%s'",
			http.MethodPost, http.MethodGet, httpReq.Method)
		return
	}

	if httpReq.Method == http.MethodGet { // Query is in the URL
		return
	}

	// Any POST body is taken as the raw query regardless of Content-Type. The http.Server closes
	// the Body. Read one byte more than the maximum so the caller can detect an oversized query.

	var err error
	body, err = io.ReadAll(io.LimitReader(httpReq.Body, int64(consts.MaximumViableDNSMessage)+1))
	if err != nil {
		serx = serBodyReadError
		hsc = http.StatusBadRequest
		errMsg = fmt.Sprintf("Error: Could not ReadAll request body: %s", err)
		return
	}

	return
}

// decodeQueryParam converts the GET qp into a byte slice. Both padded and unpadded base64url are
// accepted. Other query params, such as cache-busters, are ignored and only the first dns param
// is used. Return serx and a non-empty errMsg if any errors occur.
func (t *server) decodeQueryParam(httpReq *http.Request) (body []byte, serx serFailureIndex, errMsg string) {
	qpData := httpReq.URL.Query().Get(consts.Rfc8484QueryParam)
	if len(qpData) == 0 {
		serx = serQueryParamMissing
		errMsg = fmt.Sprintf("Error: Query Param '%s' not present in '%s' request",
			consts.Rfc8484QueryParam, http.MethodGet)
		return
	}

	body, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(qpData, "="))
	if err != nil {
		serx = serBadQueryParamDecode
		errMsg = fmt.Sprintf("Error: Query Param '%s': %s", consts.Rfc8484QueryParam, err)
		return
	}

	return
}

// error is our generic HTTP error responder which constructs the HTTP error
func (t *server) error(writer http.ResponseWriter, remoteAddr string, statusCode int, msg string) {
	http.Error(writer, msg, statusCode)
	if cfg.logHTTPOut {
		fmt.Fprintln(t.stdout, "HE:", remoteAddr, statusCode, msg)
	}
}

// stop performs an orderly shutdown of listen sockets. Mainly for tests!
func (t *server) stop() {
	if t.server != nil {
		if n := t.ccTrk.Current(); cfg.verbose && n > 0 {
			fmt.Fprintln(t.stdout, "Draining", n, "requests on", t.listenName())
		}
		err := t.server.Shutdown(context.Background())
		if cfg.logHTTPOut && err != nil {
			fmt.Fprintln(t.stdout, "HE:Shutdown:", err.Error())
		}
	}
}
