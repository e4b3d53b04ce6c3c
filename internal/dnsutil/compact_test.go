package dnsutil

import (
	"strings"
	"testing"

	"github.com/miekg/dns"
)

const allOpts = "NSID,ECS[24/16],COOKIE,UL,LLQ,DAU,DHU,7,LOCAL,PAD"

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	if err != nil {
		t.Fatal("Unexpected failure generating test data", s, err)
	}

	return rr
}

func TestCompactMsgString(t *testing.T) {
	m1 := &dns.Msg{ // Non-sensical but valid message
		Answer: []dns.RR{
			mustRR(t, "a.name.example.net. 300 IN A 192.0.2.4"),
			mustRR(t, "a.name.example.net. 300 IN AAAA fe80::f0a2:46ff:feb5:3c98"),
			mustRR(t, "compress.name.example.net. 300 IN TXT 'Some text'"),
			mustRR(t, "service.example.net. 300 IN SRV 10 20 30 host1.example.net."),
		},
		Ns: []dns.RR{
			mustRR(t, "nocompress.example.com. 300 IN NS a.ns.example.net."),
			mustRR(t, "www.example.net. 600 IN CNAME example.net."),
		},
		Extra: []dns.RR{
			mustRR(t, "example.com. 600 IN SOA internal.e hostmaster. 1554301415 16384 2048 1048576 480"),
			mustRR(t, "example.net. 600 IN MX 10 smtp.example.net."),
		},
	}
	m1.SetQuestion("a.name.example.net.", dns.TypeMX)
	m1.Id = 4321

	s1 := CompactMsgString(m1)
	for _, want := range []string{"4321/QU/0 (d) IN/MX/a.name.example.net. 4/2/2",
		"A:A*192.0.2.4/AAAA*fe80::f0a2:46ff:feb5:3c98/TXT/SRV*10-20-host1.example.net.:30",
		"N:NS*a.ns.example.net./CNAME*example.net.", "E:SOA/MX*10-smtp.example.net."} {
		if !strings.Contains(s1, want) {
			t.Error("Expected", want, "in", s1)
		}
	}

	m1.Response = true // Set all the bits to get the full decode
	m1.Authoritative = true
	m1.Truncated = true
	m1.RecursionAvailable = true
	m1.Zero = true
	m1.AuthenticatedData = true
	m1.CheckingDisabled = true
	s1 = CompactMsgString(m1)
	if !strings.Contains(s1, "(RATdaZsx)") {
		t.Error("Expected 'RATdaZsx' to represent all header bits", s1)
	}

	// Create (almost) every OPT type on the planet!

	opt := &dns.OPT{Hdr: dns.RR_Header{Name: ".", Rrtype: dns.TypeOPT}}
	opt.SetUDPSize(dns.DefaultMsgSize)
	opt.Option = append(opt.Option,
		&dns.EDNS0_NSID{},
		&dns.EDNS0_SUBNET{SourceNetmask: 24, SourceScope: 16},
		&dns.EDNS0_COOKIE{},
		&dns.EDNS0_UL{},
		&dns.EDNS0_LLQ{},
		&dns.EDNS0_DAU{},
		&dns.EDNS0_DHU{},
		&dns.EDNS0_N3U{}, // Unknown to compactOPT so shown by code
		&dns.EDNS0_LOCAL{Code: dns.EDNS0LOCALSTART},
		&dns.EDNS0_PADDING{})

	m1.Extra = append(m1.Extra, opt)
	s1 = CompactMsgString(m1)
	if !strings.Contains(s1, allOpts) {
		t.Error("Expected", allOpts, "not", s1)
	}
	if !strings.Contains(s1, "OPT(0,0,4096:") {
		t.Error("Expected Extended OPT output", s1)
	}
}

func TestCompactEmptyMsg(t *testing.T) {
	s := CompactMsgString(&dns.Msg{})
	if s != "0/QU/0 () ?/?/? 0/0/0 A: N: E:" {
		t.Error("Unexpected rendition of an empty message", s)
	}
}

func TestCompactBytesString(t *testing.T) {
	m := &dns.Msg{}
	m.SetQuestion("example.com.", dns.TypeAAAA)
	m.Id = 7
	b, err := m.Pack()
	if err != nil {
		t.Fatal("Setup error", err)
	}
	if s := CompactBytesString(b); !strings.HasPrefix(s, "7/QU/0 (d) IN/AAAA/example.com.") {
		t.Error("Packed message not decoded", s)
	}
	if s := CompactBytesString([]byte("xxxx")); s != "undecodable(4)" {
		t.Error("Expected undecodable(4), not", s)
	}
	if s := CompactBytesString(nil); s != "undecodable(0)" {
		t.Error("Expected undecodable(0), not", s)
	}
}
