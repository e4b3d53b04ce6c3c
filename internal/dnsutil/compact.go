/*
Package dnsutil renders DNS messages for log output. The racing core never looks inside queries or
responses; the only place a message is decoded is here, purely so that a human reading the log can
see what went past. A message which does not decode is shown by its length alone.
*/
package dnsutil

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// hdrBits maps each header flag to the letter shown when it is set.
var hdrBits = []struct {
	letter string
	isSet  func(h *dns.MsgHdr) bool
}{
	{"R", func(h *dns.MsgHdr) bool { return h.Response }},
	{"A", func(h *dns.MsgHdr) bool { return h.Authoritative }},
	{"T", func(h *dns.MsgHdr) bool { return h.Truncated }},
	{"d", func(h *dns.MsgHdr) bool { return h.RecursionDesired }},
	{"a", func(h *dns.MsgHdr) bool { return h.RecursionAvailable }},
	{"Z", func(h *dns.MsgHdr) bool { return h.Zero }},
	{"s", func(h *dns.MsgHdr) bool { return h.AuthenticatedData }},
	{"x", func(h *dns.MsgHdr) bool { return h.CheckingDisabled }},
}

// CompactBytesString is CompactMsgString for a message in wire format. Undecodable input is
// rendered as "undecodable(N)" where N is the length.
func CompactBytesString(b []byte) string {
	m := &dns.Msg{}
	if err := m.Unpack(b); err != nil {
		return fmt.Sprintf("undecodable(%d)", len(b))
	}

	return CompactMsgString(m)
}

// CompactMsgString generates a compact single-line rendition of the parts of a dns.Msg which are
// interesting when watching DoH traffic go by.
//
// The format is: ID/Op/rcode (bits) IN/type/qname ACount/NCount/ECount A:answers N:auths E:extras
func CompactMsgString(m *dns.Msg) string {
	var bits strings.Builder
	for _, hb := range hdrBits {
		if hb.isSet(&m.MsgHdr) {
			bits.WriteString(hb.letter)
		}
	}

	qClass, qType, qName := "?", "?", "?"
	if len(m.Question) > 0 {
		q := m.Question[0]
		qClass = dns.ClassToString[q.Qclass]
		qType = dns.TypeToString[q.Qtype]
		qName = q.Name
	}
	opCode, ok := dns.OpcodeToString[m.Opcode]
	switch {
	case !ok:
		opCode = "?"
	case len(opCode) > 2:
		opCode = opCode[:2]
	}

	return fmt.Sprintf("%d/%s/%d (%s) %s/%s/%s %d/%d/%d A:%s N:%s E:%s",
		m.Id, opCode, m.Rcode, bits.String(), qClass, qType, qName,
		len(m.Answer), len(m.Ns), len(m.Extra),
		CompactRRsString(m.Answer), CompactRRsString(m.Ns), CompactRRsString(m.Extra))
}

// CompactRRsString renders a slice of RRs separated by "/". Common types show their data, others
// show just their type.
func CompactRRsString(rrs []dns.RR) string {
	parts := make([]string, 0, len(rrs))
	for _, rr := range rrs {
		parts = append(parts, compactRR(rr))
	}

	return strings.Join(parts, "/")
}

func compactRR(rr dns.RR) string {
	switch v := rr.(type) {
	case *dns.A:
		return "A*" + v.A.String()
	case *dns.AAAA:
		return "AAAA*" + v.AAAA.String()
	case *dns.CNAME:
		return "CNAME*" + v.Target
	case *dns.MX:
		return fmt.Sprintf("MX*%d-%s", v.Preference, v.Mx)
	case *dns.NS:
		return "NS*" + v.Ns
	case *dns.SRV:
		return fmt.Sprintf("SRV*%d-%d-%s:%d", v.Priority, v.Weight, v.Target, v.Port)
	case *dns.OPT:
		return compactOPT(v)
	}

	return dns.TypeToString[rr.Header().Rrtype]
}

// optNames are the EDNS0 options shown by name. Anything else is shown by its code.
var optNames = map[uint16]string{
	dns.EDNS0NSID:    "NSID",
	dns.EDNS0COOKIE:  "COOKIE",
	dns.EDNS0UL:      "UL",
	dns.EDNS0LLQ:     "LLQ",
	dns.EDNS0DAU:     "DAU",
	dns.EDNS0DHU:     "DHU",
	dns.EDNS0PADDING: "PAD",
}

func compactOPT(opt *dns.OPT) string {
	names := make([]string, 0, len(opt.Option))
	for _, o := range opt.Option {
		if ecs, ok := o.(*dns.EDNS0_SUBNET); ok {
			names = append(names, fmt.Sprintf("ECS[%d/%d]", ecs.SourceNetmask, ecs.SourceScope))
			continue
		}
		if _, ok := o.(*dns.EDNS0_LOCAL); ok {
			names = append(names, "LOCAL")
			continue
		}
		if n, ok := optNames[o.Option()]; ok {
			names = append(names, n)
			continue
		}
		names = append(names, fmt.Sprintf("%d", o.Option()))
	}

	return fmt.Sprintf("OPT(%d,%d,%d:%s)", opt.Version(), opt.ExtendedRcode(), opt.UDPSize(),
		strings.Join(names, ","))
}
