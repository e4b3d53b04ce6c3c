package registry

import (
	"fmt"
)

func (t *Registry) Name() string {
	return "Registry"
}

/*
Report returns one line per node in original list order. Scores and latencies are never reset as
they are state rather than counters, only the ok/errs counters are.

Output:

	score=98 ll=0.034 ok=12 errs=1 https://dns.example/dns-query
	      ^     ^        ^      ^   ^
	      |     |        |      |   +-- Server URL
	      |     |        |      +--Failures recorded
	      |     |        +--Successes recorded
	      |     +--Last success latency in seconds
	      +--Current score
*/
func (t *Registry) Report(resetCounters bool) string {
	if resetCounters {
		t.lock()
		defer t.unlock()
	} else {
		t.rlock()
		defer t.runlock()
	}

	report := ""
	for _, n := range t.nodes {
		report += fmt.Sprintf("score=%d ll=%0.3f ok=%d errs=%d %s\n",
			n.Score, n.LastLatency.Seconds(), n.successes, n.failures, n.URL)
		if resetCounters {
			n.nodeStats = nodeStats{}
		}
	}

	return report
}
