package tlsutil

import (
	"crypto/x509"
	"fmt"
	"os"
)

// loadroots builds the pool used to verify the far end: the system roots when useSystemRoots is
// set, otherwise an empty pool, plus the PEM certificates in each of extraFiles. A file which
// yields no certificate is an error rather than silently ignored.
func loadroots(useSystemRoots bool, extraFiles []string) (pool *x509.CertPool, err error) {
	switch {
	case useSystemRoots:
		if pool, err = x509.SystemCertPool(); err != nil {
			return nil, fmt.Errorf("loadroots:systemRoots failed: %w", err)
		}
	default:
		pool = x509.NewCertPool()
	}

	for _, f := range extraFiles {
		if err = appendPEMFile(pool, f); err != nil {
			return nil, err
		}
	}

	return pool, nil
}

func appendPEMFile(pool *x509.CertPool, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("loadroots:otherCA failed: %w", err)
	}
	if !pool.AppendCertsFromPEM(data) {
		return fmt.Errorf("loadroots:no certificates found in %s", file)
	}

	return nil
}
