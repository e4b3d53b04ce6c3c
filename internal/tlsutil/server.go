package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sort"
)

// NewServerTLSConfig creates a tls.Config for the DoH listener. If system roots are requested or
// otherCAFiles are supplied, clients must present a certificate which verifies against them. Each
// cert file is paired with the key file in the same position.
//
// An empty certs list is not an error. It means the caller intends to listen with plain HTTP,
// typically because TLS is terminated by a reverse proxy in front of racedoh.
func NewServerTLSConfig(useSystemCAs bool, otherCAFiles []string, certs, keys []string) (*tls.Config, error) {
	const me = "tlsutil:NewServerTLSConfig"

	cfg := &tls.Config{MinVersion: minimumVersion}
	if useSystemCAs || len(otherCAFiles) > 0 {
		pool, err := loadroots(useSystemCAs, otherCAFiles)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", me, err)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	if len(certs) != len(keys) {
		return nil, fmt.Errorf("%s:Certificate file count (%d) and key file count (%d) don't match",
			me, len(certs), len(keys))
	}

	for ix, certFile := range certs {
		keyFile := keys[ix]
		if len(certFile) == 0 || len(keyFile) == 0 {
			return nil, fmt.Errorf("%s:Empty cert or key file name @ %d", me, ix)
		}
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("%s:%s and %s: %w", me, certFile, keyFile, err)
		}
		cfg.Certificates = append(cfg.Certificates, cert)
	}

	return cfg, nil
}

// CertificateNames returns the sorted, de-duplicated set of Common Names and DNS SANs across all
// certificates in cfg. The listener selects among these by SNI.
func CertificateNames(cfg *tls.Config) []string {
	if cfg == nil {
		return nil
	}

	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if len(n) > 0 && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, cert := range cfg.Certificates {
		leaf := cert.Leaf
		if leaf == nil && len(cert.Certificate) > 0 {
			var err error
			if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
				continue
			}
		}
		if leaf == nil {
			continue
		}
		add(leaf.Subject.CommonName)
		for _, n := range leaf.DNSNames {
			add(n)
		}
	}
	sort.Strings(names)

	return names
}
