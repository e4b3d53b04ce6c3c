package constants

import (
	"testing"
)

func TestPostGet(t *testing.T) {
	if readOnlyConstants == nil {
		t.Error("Expected readOnlyConstants to be set by init() prior to me")
	}
}

// TestValues tests that at least a few of the constants have been
// initialized. Too tiresome to test them all and obviously of limited
// value.
func TestValues(t *testing.T) {
	consts := Get()
	if len(consts.ServerProgramName) == 0 {
		t.Error("consts.ServerProgramName should be set but it's zero length")
	}
	if len(consts.RFC) == 0 {
		t.Error("consts.RFC should be set but it's zero length")
	}

	if len(consts.HTTPSDefaultPort) == 0 {
		t.Error("consts.HTTPSDefaultPort should be set but it's zero length")
	}
	if consts.CacheHitValue != "HIT" {
		t.Error("consts.CacheHitValue should be HIT, not", consts.CacheHitValue)
	}
	if consts.MinimumViableDNSMessage == 0 {
		t.Error("consts.MinimumViableDNSMessage should be set but it's zero")
	}
	if consts.DefaultRateLimit != 250 || consts.DefaultRateWindow.Seconds() != 60 {
		t.Error("Rate limiter defaults changed", consts.DefaultRateLimit, consts.DefaultRateWindow)
	}
	if consts.DefaultCacheTTL.Seconds() != 300 {
		t.Error("Cache TTL default changed", consts.DefaultCacheTTL)
	}
	if consts.DefaultFanout != 8 {
		t.Error("Fanout default changed", consts.DefaultFanout)
	}
}

// Modifying the returned upstream list must not leak into subsequent Get() calls.
func TestUpstreamsCopied(t *testing.T) {
	c1 := Get()
	if len(c1.DefaultUpstreams) == 0 {
		t.Fatal("DefaultUpstreams is empty")
	}
	c1.DefaultUpstreams[0] = "bogus"
	c2 := Get()
	if c2.DefaultUpstreams[0] == "bogus" {
		t.Error("DefaultUpstreams shared between Get() calls")
	}
}
