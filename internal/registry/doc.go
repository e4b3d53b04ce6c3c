/*
The registry package holds the set of upstream resolvers along with a reputation score for each of
them. The score is a crude measure of recent reliability: every success nudges it up a little and
every failure knocks it down a lot, so a flaky server sinks below its healthy peers quickly and
only climbs back after a run of good results.

What a node represents is mostly irrelevant to this package. In racedoh it is a DoH URL, but it
could just as easily be an IP address or the name of a racing pigeon.

Typical usage looks like this:

	reg, _ := registry.New(registry.Config{}, urls)
	for {
		for _, n := range reg.TopK(8) {     // Highest scores first
			go func(n registry.Node) {
				start := time.Now()
				if useServer(n.URL) {
					reg.RecordSuccess(n.Index, time.Since(start))
				} else {
					reg.RecordFailure(n.Index)
				}
			}(n)
		}
	}

Scores start at MaxScore and are clamped to the range [Floor, MaxScore]. The floor stops a
registry in which every server is failing from drifting towards arbitrarily negative scores, where
the ordering would be decided by how long ago each server started failing rather than anything
useful.

TopK() returns a snapshot of the nodes sorted by descending score. Ties retain the order in which
the URLs were originally supplied so a freshly constructed registry prefers the first URLs listed.

The expectation is that there are a relatively small number of servers as TopK() sorts all entries
on every call. A server list of 10-50 is reasonable, 10,000 is probably not.

Multiple goroutines can safely invoke all methods concurrently.
*/
package registry
