// Listen for inbound DNS Over HTTPS queries and race them across upstream DoH servers
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/racedoh/racedoh/internal/cache"
	"github.com/racedoh/racedoh/internal/constants"
	"github.com/racedoh/racedoh/internal/engine"
	"github.com/racedoh/racedoh/internal/osutil"
	"github.com/racedoh/racedoh/internal/ratelimit"
	"github.com/racedoh/racedoh/internal/registry"
	"github.com/racedoh/racedoh/internal/reporter"
	"github.com/racedoh/racedoh/internal/resolver/race"
	"github.com/racedoh/racedoh/internal/tlsutil"

	"github.com/google/gops/agent"
	"golang.org/x/net/http2"
)

// Program-wide variables
var (
	consts               = constants.Get()
	cfg                  *config
	defaultListenAddress = ":" + consts.HTTPSDefaultPort

	stdout io.Writer // All I/O goes via these writers
	stderr io.Writer

	startTime   = time.Now()
	stopChannel chan os.Signal
	flagSet     *flag.FlagSet
)

//////////////////////////////////////////////////////////////////////

func fatal(args ...interface{}) int {
	fmt.Fprint(stderr, "Fatal: ", consts.ServerProgramName, ": ")
	fmt.Fprintln(stderr, args...)

	return 1
}

func stopMain() {
	stopChannel <- syscall.SIGINT
}

//////////////////////////////////////////////////////////////////////
// main wrappers make it easy for test programs
//////////////////////////////////////////////////////////////////////

// mainInit resets everything such that mainExecute() can be called multiple times in one program
// execution. stopChannel is buffered as the reader may disappear if there is a fatal error and
// multiple writers my try and write to the channel and we don't want those writers to stall
// forever.
func mainInit(out io.Writer, err io.Writer) {
	cfg = &config{}
	stdout = out
	stderr = err
	mainState(initial)
	stopChannel = make(chan os.Signal, 4) // All reasonable signals cause us to quit or stats report
	osutil.SignalNotify(stopChannel)
}

func main() {
	mainInit(os.Stdout, os.Stderr)
	os.Exit(mainExecute(os.Args))
}

func mainExecute(args []string) int {
	defer mainState(stopped) // Tell testers we've stopped even on error returns
	flagSet = flag.NewFlagSet(args[0], flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	err := parseCommandLine(args)
	if err != nil {
		return 1 // Error already printed by the flag package
	}
	if cfg.help {
		usage(stdout)
		return 0
	}
	if cfg.version {
		fmt.Fprintln(stdout, consts.ServerProgramName, "Version:", consts.Version)
		return 0
	}

	if cfg.logAll {
		cfg.logClientIn = true
		cfg.logClientOut = true
		cfg.logHTTPOut = true
		cfg.logHTTPIn = true
		cfg.logRace = true
		cfg.logThrottle = true
		cfg.logTLSErrors = true
	}

	// Validate upstream URLs. Both -u and positional arguments are accepted.

	var upstreams []string
	for _, dohURL := range append(cfg.upstreams.Args(), flagSet.Args()...) {
		u, err := normalizeURL(dohURL)
		if err != nil {
			return fatal(err)
		}
		upstreams = append(upstreams, u)
	}
	if len(upstreams) == 0 {
		upstreams = consts.DefaultUpstreams
	}

	var reporters []reporter.Reporter // Track of all reportables for periodic reporting
	var servers []*server             // Track of all servers so we can shut then down

	// Construct the engine from the bottom up

	reg, err := registry.New(registry.Config{}, upstreams)
	if err != nil {
		return fatal(err)
	}

	if cfg.maximumRemoteConnections < 1 {
		return fatal("Minimum remote concurrency must be greater than zero (-r)")
	}
	client, err := newUpstreamClient()
	if err != nil {
		return fatal(err)
	}
	racer, err := race.New(race.Config{Fanout: cfg.fanout, AttemptTimeout: cfg.attemptTimeout}, reg, client)
	if err != nil {
		return fatal(err)
	}

	rc, err := cache.New(cache.Config{TTL: cfg.cacheTTL, MaxEntries: cfg.cacheSize})
	if err != nil {
		return fatal(err)
	}
	limiter, err := ratelimit.New(ratelimit.Config{Limit: cfg.rateLimit, Window: cfg.rateWindow})
	if err != nil {
		return fatal(err)
	}
	eng, err := engine.New(engine.Config{}, limiter, rc, racer)
	if err != nil {
		return fatal(err)
	}
	reporters = append(reporters, eng, racer, reg, rc, limiter)

	// Create a TLS configuration for constructing HTTPS transport. This is where we load in our
	// cert/key files and possibly enable verification of client certs.

	tlsConfig, err := tlsutil.NewServerTLSConfig(cfg.tlsUseSystemRootCAs, cfg.tlsCAFiles.Args(),
		cfg.tlsServerCertFiles.Args(), cfg.tlsServerKeyFiles.Args())
	if err != nil {
		return fatal(err)
	}

	if cfg.listenAddresses.NArg() == 0 { // Use wildcard if none supplied
		cfg.listenAddresses.Set(defaultListenAddress)
	}

	if cfg.gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			return fatal(err)
		}
		defer agent.Close()
	}

	// Start CPU profiling now that most error checking is complete

	if len(cfg.cpuprofile) > 0 {
		f, err := os.Create(cfg.cpuprofile)
		if err != nil {
			return fatal(err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	// Memory profile is triggered at the end of the program but we open the output file and
	// hold it open prior to any possible chroot/setuid/setgid action.

	var memProfileFile *os.File
	if len(cfg.memprofile) > 0 {
		memProfileFile, err = os.Create(cfg.memprofile)
		if err != nil {
			return fatal(err)
		}
		defer memProfileFile.Close()
	}

	// Start a server for each listen address

	if cfg.verbose {
		fmt.Fprintln(stdout, consts.ServerProgramName, consts.Version, "Starting")
		for _, name := range tlsutil.CertificateNames(tlsConfig) {
			fmt.Fprintln(stdout, "Accepting TLS Name:", name)
		}
		fmt.Fprintf(stdout, "Racing %d of %d upstreams\n", racer.Fanout(), reg.Len())
	}

	errorChannel := make(chan error, cfg.listenAddresses.NArg()+1)
	wg := &sync.WaitGroup{} // Wait on all servers

	for _, addr := range cfg.listenAddresses.Args() {
		ip := net.ParseIP(addr) // We have to wrap unadorned ipv6 addresses so we can append port
		if ip != nil && ip.To16() != nil {
			addr = "[" + addr + "]" // It's naked, so wrap it
		}

		// If addr is neither v4addr:port, [v6addr]:port or host:port, append the default port
		if !(strings.LastIndex(addr, ":") > strings.LastIndex(addr, "]")) {
			addr += ":" + consts.HTTPSDefaultPort
		}

		s := newServer(stdout, eng, addr)
		s.start(tlsConfig, errorChannel, wg)
		if cfg.verbose {
			fmt.Fprintln(stdout, "Listening:", s.listenName())
		}
		reporters = append(reporters, s)
		reporters = append(reporters, s.connTrk)
		servers = append(servers, s)
	}

	// Constrain the process via setuid/setgid/chroot. This is a no-op call if all parameters
	// are empty strings.
	//
	// We have no way of knowing when the servers just started have opened their sockets and
	// thus no longer need the privileges we started with. Constrain too soon and they fail, so
	// the best we can do is wait a generous amount of time in a separate go-routine so the main
	// loop can still select for errors and signals.

	go func(setuidName, setgidName, chrootDir string, verbose bool, stdout io.Writer) {
		time.Sleep(3 * time.Second) // Hopefully absurdly large but also not too huge a security window
		err := osutil.Constrain(setuidName, setgidName, chrootDir)
		if err != nil {
			errorChannel <- err // Force main go-routine to exit
			return
		}
		if verbose {
			fmt.Fprintf(stdout, "Constraints: %s\n", osutil.ConstraintReport())
		}
	}(cfg.setuidName, cfg.setgidName, cfg.chrootDir, cfg.verbose, stdout)

	// Loop forever giving periodic status reports and checking for a termination event. Expired
	// rate limiter entries are pruned once per window so idle clients do not accumulate.

	mainState(started) // Tell testers we're up and running
	nextStatusIn := nextInterval(time.Now(), cfg.statusInterval)
	pruneTicker := time.NewTicker(limiter.Window)
	defer pruneTicker.Stop()

Running:
	for {
		select {
		case s := <-stopChannel:
			if osutil.IsSignalUSR1(s) {
				statusReport("User1", false, reporters)
				break
			}
			if cfg.verbose {
				fmt.Fprintln(stdout, "\nSignal", s)
			}
			break Running // All signals bar USR1 cause loop exit

		case err := <-errorChannel:
			return fatal(err) // No cleanup if we get a server startup error

		case now := <-pruneTicker.C:
			limiter.Prune(now)

		case <-time.After(nextStatusIn):
			if cfg.verbose {
				statusReport("Status", true, reporters)
			}
			nextStatusIn = nextInterval(time.Now(), cfg.statusInterval)
		}
	}

	// Shutting down

	for _, s := range servers {
		s.stop()
	}
	mainState(stopped) // Tell testers we've stopped accepting requests
	wg.Wait()          // Wait for all servers to completely shut down

	if cfg.verbose {
		statusReport("Status", true, reporters) // One last report prior to exiting
		fmt.Fprintln(stdout, consts.ServerProgramName, consts.Version, "Exiting after", uptime())
	}

	// Memory profile is written at the end of the program

	if memProfileFile != nil {
		runtime.GC() // get up-to-date statistics
		err := pprof.WriteHeapProfile(memProfileFile)
		if err != nil {
			return fatal(err)
		}
	}

	return 0
}

// normalizeURL accepts a full DoH URL or a bare hostname. A missing scheme defaults to https and a
// missing path defaults to the RFC8484 path.
func normalizeURL(dohURL string) (string, error) {
	u, err := url.Parse(dohURL)
	if err != nil {
		return "", err
	}
	if len(u.Scheme) == 0 && len(u.Host) == 0 && len(u.Path) > 0 { // A plain FQDN looks like this
		u.Host = u.Path
		u.Path = ""
	}
	if len(u.Host) == 0 {
		return "", fmt.Errorf("%s does not contain a hostname", dohURL)
	}
	if len(u.Scheme) == 0 {
		u.Scheme = "https"
	}
	if len(u.Path) == 0 {
		u.Path = consts.Rfc8484Path
	}

	return u.String(), nil
}

// newUpstreamClient creates the HTTP client shared by all race attempts. Each attempt carries its
// own timeout so the client itself has none.
func newUpstreamClient() (*http.Client, error) {
	tlsConfig, err := tlsutil.NewUpstreamTLSConfig(!cfg.tlsUpstreamNoCheck, cfg.tlsUpstreamCAFiles.Args())
	if err != nil {
		return nil, err
	}

	tr := &http.Transport{TLSClientConfig: tlsConfig, MaxConnsPerHost: cfg.maximumRemoteConnections,
		Proxy: http.ProxyFromEnvironment}
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{Transport: tr}, nil
}

// nextInterval calculates the duration to now+modulo interval. If now is 00:01:17 and the interval
// is 15m then the returned duration is 13m43s which is the distance to the 00:15:00. The idea is to
// provide a wait/sleep value which gets the caller to the next interval tick-over.
func nextInterval(now time.Time, interval time.Duration) time.Duration {
	return now.Truncate(interval).Add(interval).Sub(now)
}

// upTime calculates how long this server has been running and returns log-friendly and
// granularity-appropriate representation of that duration.
func uptime() string {
	return time.Now().Sub(startTime).Truncate(time.Second).String()
}

// statusReport prints stats about the server and all known reporters
func statusReport(what string, resetCounters bool, reporters []reporter.Reporter) {
	fmt.Fprintln(stdout, "Status Up:", consts.ServerProgramName, consts.Version, uptime())
	for _, r := range reporters {
		reps := strings.Split(r.Report(resetCounters), "\n")
		for _, s := range reps {
			if len(s) > 0 {
				fmt.Fprintf(stdout, "%s %s: %s\n", what, r.Name(), s)
			}
		}
	}
}
