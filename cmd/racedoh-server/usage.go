package main

import (
	"fmt"
	"io"
	"text/template"
	"time"
)

// The "flag" package is not tty aware so we've arbitrarily picked 100 columns as a conservative tty
// width for the usage output.

const usageMessageTemplate = `
NAME
          {{.ServerProgramName}} -- a racing DNS Over HTTPS server

SYNOPSIS
          {{.ServerProgramName}} [options] [upstream DoH URL...]

DESCRIPTION
          {{.ServerProgramName}} is a DNS over HTTPS server based on {{.RFC}} (DoH). It accepts DNS
          queries serialized within an HTTP(s) request and forwards each one concurrently to a
          number of upstream DoH servers. The first good response is returned to the client and
          the rest are abandoned.

          Every upstream carries a score which starts at 100. A good response adds a little to the
          score and a failure subtracts a lot, so the servers raced for each query are the ones
          which have recently proven fast and reliable.

          Responses are cached for a short time keyed by the exact query bytes and each client is
          limited to a fixed number of requests per window.

          The wildcard interface address and default HTTPS port are used if no listen addresses are
          specified. A built-in list of public DoH servers is used if no upstreams are specified.

INVOCATION
          The simplest invocation is:

              $ {{.ServerProgramName}}

          at which point you should be able to send DoH queries to the default listen address.

          When {{.ServerProgramName}} is invoked with a TLS Key File the listen connections accept
          HTTPS connections otherwise the listen connections accept HTTP connections. HTTP is
          normally only used for testing or when {{.ServerProgramName}} sits behind a TLS
          terminating proxy, in which case --client-ip-header names the header the proxy uses to
          convey the real client address.

RESPONSE HEADERS
          Responses served from the cache carry "X-Cache: HIT". Responses from a race carry
          "X-Racer-Ms: Nms" giving the latency of the winning upstream.

STATUS CODES
          400 malformed query, 405 method not GET or POST, 429 client is over the rate limit,
          502 every raced upstream failed. POST bodies are accepted whatever their Content-Type
          and GET params other than "dns" are ignored.

OPTIONS
          [-hv]
          [-A listen Address[:port] ...]
          [-u upstream DoH URL ...]

          [-k race fanout] [-t per-attempt timeout]
          [-r maximum concurrent connections per upstream]
          [-i status-report-interval]

          [--cache-ttl duration] [--cache-size entries]
          [--rate-limit requests] [--rate-window duration]
          [--client-ip-header header]

          [--log-client-in] [--log-client-out]
          [--log-http-in] [--log-http-out]
          [--log-race] [--log-throttle]
          [--log-tls-errors]
          [--log-all]

          [--tls-cert TLS Server Certificate file] ...
          [--tls-key TLS Server Key file] ...
          [--tls-other-roots TLS Root Certificate file] ...
          [--tls-use-system-roots]
          [--tls-upstream-roots TLS Root Certificate file] ...
          [--tls-upstream-no-check]

          [--gops] [--cpu-profile file] [--mem-profile file]

          [--user userName] [--group groupName] [--chroot directory]

          [--version]

`

//////////////////////////////////////////////////////////////////////

func usage(out io.Writer) {
	tmpl, err := template.New("usage").Parse(usageMessageTemplate)
	if err != nil {
		panic(err) // We've messed up our template
	}
	err = tmpl.Execute(out, consts)
	if err != nil {
		panic(err) // We've messed up our template
	}
	flagSet.SetOutput(out) // This is permanent so we assume an exit summarily
	flagSet.PrintDefaults()
	fmt.Fprintln(out, "\nVersion:", consts.Version)
}

// parseCommandLine sets up the flags-to-config mapping and parses the supplied command line
// arguments. It starts from scratch each time to make it eaiser for test wrappers to use.
func parseCommandLine(args []string) error {
	flagSet.BoolVar(&cfg.help, "h", false, "Print usage message to Stdout then exit(0)")

	flagSet.Var(&cfg.listenAddresses, "A",
		"Listen `address` to accept DoH queries (default "+defaultListenAddress+")")
	flagSet.Var(&cfg.upstreams, "u", "Upstream DoH server `URL` to race (default is a built-in list)")

	flagSet.IntVar(&cfg.fanout, "k", consts.DefaultFanout, "Race the `count` highest scoring upstreams")
	flagSet.DurationVar(&cfg.attemptTimeout, "t", consts.DefaultAttemptTimeout, "Per-attempt upstream `timeout`")
	flagSet.IntVar(&cfg.maximumRemoteConnections, "r", 20, "Maximum concurrent `connections` per upstream")
	flagSet.DurationVar(&cfg.statusInterval, "i", time.Minute*15, "Periodic Status Report `interval` (needs -v set)")
	flagSet.BoolVar(&cfg.verbose, "v", false, "Verbose status and stats - otherwise only errors are output")

	flagSet.DurationVar(&cfg.cacheTTL, "cache-ttl", consts.DefaultCacheTTL, "Serve cached responses for this `duration`")
	flagSet.IntVar(&cfg.cacheSize, "cache-size", consts.DefaultCacheMaxEntries, "Maximum cached `entries`")

	flagSet.IntVar(&cfg.rateLimit, "rate-limit", consts.DefaultRateLimit, "Maximum `requests` per client per window")
	flagSet.DurationVar(&cfg.rateWindow, "rate-window", consts.DefaultRateWindow, "Rate limit window `duration`")
	flagSet.StringVar(&cfg.clientIPHeader, "client-ip-header", "",
		"Trusted HTTP `header` containing the client IP (e.g. CF-Connecting-IP)")

	flagSet.BoolVar(&cfg.logAll, "log-all", false, "Turns on all other --log-* options")
	flagSet.BoolVar(&cfg.logClientIn, "log-client-in", false, "Compact print of inbound DNS query (from client)")
	flagSet.BoolVar(&cfg.logClientOut, "log-client-out", false, "Compact print of outbound DNS response (to client)")
	flagSet.BoolVar(&cfg.logHTTPIn, "log-http-in", false, "Compact print of inbound HTTP query")
	flagSet.BoolVar(&cfg.logHTTPOut, "log-http-out", false, "Compact print of outbound HTTP response")
	flagSet.BoolVar(&cfg.logRace, "log-race", false, "Print winner and latency of each race")
	flagSet.BoolVar(&cfg.logThrottle, "log-throttle", false, "Print clients rejected by the rate limiter")

	flagSet.BoolVar(&cfg.logTLSErrors, "log-tls-errors", false, "Print Client TLS verification failures")

	// TLS

	flagSet.Var(&cfg.tlsServerCertFiles, "tls-cert", "TLS Server Certificate `file`")
	flagSet.Var(&cfg.tlsServerKeyFiles, "tls-key", "TLS Server Key `file`")
	flagSet.Var(&cfg.tlsCAFiles, "tls-other-roots", "Non-system Root CA `file` used to validate HTTPS clients")
	flagSet.BoolVar(&cfg.tlsUseSystemRootCAs, "tls-use-system-roots", false,
		"Validate HTTPS clients with root CAs")
	flagSet.Var(&cfg.tlsUpstreamCAFiles, "tls-upstream-roots", "Non-system Root CA `file` used to validate upstreams")
	flagSet.BoolVar(&cfg.tlsUpstreamNoCheck, "tls-upstream-no-check", false,
		"Do not validate upstream certificates (testing only)")

	// gops and go pprof settings

	flagSet.BoolVar(&cfg.gops, "gops", false, "Start github.com/google/gops agent")
	flagSet.StringVar(&cfg.cpuprofile, "cpu-profile", "", "write cpu profile to `file`")
	flagSet.StringVar(&cfg.memprofile, "mem-profile", "", "write mem profile to `file`")

	// Process Constraint parameters

	flagSet.StringVar(&cfg.setuidName, "user", "", "setuid `username` to constrain process after start-up")
	flagSet.StringVar(&cfg.setgidName, "group", "", "setgid `groupname` to constrain process after start-up")
	flagSet.StringVar(&cfg.chrootDir, "chroot", "", "chroot `directory` to constrain process after start-up")

	flagSet.BoolVar(&cfg.version, "version", false, "Print version and exit")

	return flagSet.Parse(args[1:])
}
