// Package tlsutil builds the tls.Config values used on either side of racedoh: the listener which
// accepts DoH queries from clients and the HTTP transport which races queries to upstream servers.
package tlsutil

import (
	"crypto/tls"
	"fmt"
)

// RFC8484 Section 5 says DoH SHOULD use TLS 1.2 or later.
const minimumVersion = tls.VersionTLS12

// NewUpstreamTLSConfig creates a tls.Config for connecting to upstream DoH servers. If verify is
// true, upstream certificates are checked against the system roots plus any otherCAFiles. If
// verify is false no checking is done at all and otherCAFiles must be empty as there is no point
// in loading roots which are never consulted.
func NewUpstreamTLSConfig(verify bool, otherCAFiles []string) (*tls.Config, error) {
	const me = "tlsutil:NewUpstreamTLSConfig"

	cfg := &tls.Config{MinVersion: minimumVersion}
	if !verify {
		if len(otherCAFiles) > 0 {
			return nil, fmt.Errorf("%s:Root CAs supplied with verification disabled", me)
		}
		cfg.InsecureSkipVerify = true

		return cfg, nil
	}

	pool, err := loadroots(true, otherCAFiles)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", me, err)
	}
	cfg.RootCAs = pool

	return cfg, nil
}
