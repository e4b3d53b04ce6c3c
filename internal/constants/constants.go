/*
Package constants provides common values used across all racedoh packages. Usage is to call the
global Get() function which returns the Constants by value ensuring that any modifications made
(accidental or otherwise) will not affect other modules when they call Get().

Typically usage:

	consts := constants.Get()
	fmt.Println("I am", consts.ServerProgramName, "based on", consts.RFC)

The primary reason for making this a constructed struct rather than the more typical const () block
is so that it can be fed directly into templating packages for printing usage messages.
*/
package constants

import (
	"time"
)

// Constants contains the system-wide constants
type Constants struct {
	ServerProgramName string // Package related constants
	Version           string
	PackageName       string
	PackageURL        string
	RFC               string

	HTTPSDefaultPort string // HTTP related constants

	AcceptHeader      string // Place in every upstream request
	ContentTypeHeader string
	UserAgentHeader   string

	CacheHeader        string // Set on responses served from the cache
	CacheHitValue      string
	RacerTimeHeader    string // Set on responses served by a race with the winner latency
	RacerTimeSuffix    string
	Rfc8484AcceptValue string

	Rfc8484Path       string
	Rfc8484QueryParam string

	MinimumViableDNSMessage uint // Length of a bare MsgHdr
	MaximumViableDNSMessage uint // RFC8484 defines an upper limit

	DefaultFanout         int           // Race Coordinator defaults
	DefaultAttemptTimeout time.Duration

	DefaultCacheTTL        time.Duration // Response Cache defaults
	DefaultCacheMaxEntries int

	DefaultRateLimit  int           // Rate Limiter defaults
	DefaultRateWindow time.Duration

	DefaultUpstreams []string // Seed for the Resolver Registry
}

var readOnlyConstants *Constants

// createReadOnlyConstants creates a read-only copy of the Constants which is copied whenever a
// caller asks for the constants set. The main reason for returning a struct is so that callers can
// inspect and/or use packages that introspect - particularly */template packages.
func createReadOnlyConstants() {
	readOnlyConstants = &Constants{
		ServerProgramName: "racedoh-server",
		Version:           "v0.3.0",
		PackageName:       "Racing DNS Over HTTPS",
		PackageURL:        "https://github.com/racedoh/racedoh",
		RFC:               "RFC8484",

		HTTPSDefaultPort: "443",

		AcceptHeader:      "Accept",
		ContentTypeHeader: "Content-Type",
		UserAgentHeader:   "User-Agent",

		CacheHeader:        "X-Cache",
		CacheHitValue:      "HIT",
		RacerTimeHeader:    "X-Racer-Ms",
		RacerTimeSuffix:    "ms",
		Rfc8484AcceptValue: "application/dns-message",

		Rfc8484Path:       "/dns-query",
		Rfc8484QueryParam: "dns",

		MinimumViableDNSMessage: 12, // Anything shorter is not DNS
		MaximumViableDNSMessage: 65535,

		DefaultFanout:         8,
		DefaultAttemptTimeout: 5 * time.Second,

		DefaultCacheTTL:        300 * time.Second,
		DefaultCacheMaxEntries: 65536,

		DefaultRateLimit:  250,
		DefaultRateWindow: 60 * time.Second,

		DefaultUpstreams: []string{
			"https://cloudflare-dns.com/dns-query", "https://dns.google/dns-query",
			"https://dns.quad9.net/dns-query", "https://1.1.1.1/dns-query",
			"https://8.8.8.8/dns-query", "https://9.9.9.9/dns-query",
			"https://dns.nextdns.io/dns-query", "https://doh.mullvad.net/dns-query",
			"https://freedns.controld.com/p0", "https://doh.applied-privacy.net/query",
			"https://anycast.uncensoreddns.org/dns-query", "https://dns.adguard-dns.com/dns-query",
			"https://doh.cleanbrowsing.org/doh/family-filter/", "https://dnsforge.de/dns-query",
			"https://unfiltered.adguard-dns.com/dns-query", "https://doh.posteo.de/dns-query",
			"https://doh-de.blahdns.com/dns-query", "https://doh-fi.blahdns.com/dns-query",
			"https://jp.tiar.app/dns-query", "https://doh.libredns.gr/dns-query",
			"https://odvr.nic.cz/dns-query", "https://dns.alidns.com/dns-query",
			"https://doh.pub/dns-query", "https://doh.360.cn/dns-query",
			"https://resolver.dnsprivacy.org.uk/dns-query", "https://doh.sz-dns.com/dns-query",
			"https://dns.bitdefender.net/dns-query", "https://doh.rethinkdns.com/dns-query",
			"https://hard.dnsforge.de/dns-query", "https://clean.dnsforge.de/dns-query",
			"https://kids.dns0.eu/dns-query", "https://zero.dns0.eu/dns-query",
		},
	}
}

func init() {
	createReadOnlyConstants()
}

// Get returns a copy of the Constant struct. Return by value so internal values cannot be
// inadvertently changed by callers. The upstream slice is copied for the same reason.
func Get() Constants {
	c := *readOnlyConstants
	c.DefaultUpstreams = append([]string{}, readOnlyConstants.DefaultUpstreams...)

	return c
}
