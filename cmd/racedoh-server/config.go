package main

import (
	"time"

	"github.com/racedoh/racedoh/internal/flagutil"
)

type config struct {
	gops    bool
	help    bool
	verbose bool
	version bool

	listenAddresses flagutil.StringValue // Addresses for inbound HTTP requests
	upstreams       flagutil.StringValue // DoH servers to race. Positional args are appended

	fanout                   int
	attemptTimeout           time.Duration
	maximumRemoteConnections int
	statusInterval           time.Duration

	cacheTTL  time.Duration
	cacheSize int

	rateLimit      int
	rateWindow     time.Duration
	clientIPHeader string // Trusted header carrying the client IP, e.g. CF-Connecting-IP

	logAll       bool // Turns on all other log options
	logClientIn  bool // Compact print of DNS query arriving from the HTTPS client
	logClientOut bool // Compact print of DNS response returned to the HTTPS client
	logHTTPIn    bool // Compact print of HTTP query arriving from the HTTPS client
	logHTTPOut   bool // Compact print of HTTP response returned to the HTTPS client
	logRace      bool // Winner and latency of each race
	logThrottle  bool // Clients rejected by the rate limiter
	logTLSErrors bool // Print Client TLS verification failures

	tlsServerCertFiles  flagutil.StringValue
	tlsServerKeyFiles   flagutil.StringValue
	tlsCAFiles          flagutil.StringValue // Non-system root CAs to verify HTTPS clients
	tlsUseSystemRootCAs bool                 // Do/Do not verify HTTPS clients with system root CAs

	tlsUpstreamCAFiles flagutil.StringValue // Non-system root CAs to verify upstream DoH servers
	tlsUpstreamNoCheck bool                 // Do not verify upstream DoH servers at all

	cpuprofile, memprofile string

	setuidName, setgidName, chrootDir string // Process constraint settings
}
