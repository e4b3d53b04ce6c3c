package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

const me = "registry"

// Config defines the scoring parameters. Zero values are replaced by those in DefaultConfig.
type Config struct {
	MaxScore     int // Initial and maximum score
	SuccessDelta int // Added on each success
	FailureDelta int // Subtracted on each failure - normally much larger than SuccessDelta
	Floor        int // Scores never go below this
}

var (
	DefaultConfig = Config{
		MaxScore:     100,
		SuccessDelta: 2,
		FailureDelta: 15,
		Floor:        0,
	}
)

// Node is a point-in-time copy of a registry entry. Index is the position of the URL in the list
// originally supplied to New() and is what the Record* methods expect.
type Node struct {
	Index       int
	URL         string
	Score       int
	LastLatency time.Duration // Of the most recent success. Informational only
}

// LastLatencyMillis is a convenience for status reports and response headers.
func (n Node) LastLatencyMillis() int64 {
	return n.LastLatency.Milliseconds()
}

type nodeStats struct {
	successes int
	failures  int
}

type node struct {
	Node
	nodeStats
}

// Registry owns all nodes. Construct with New().
type Registry struct {
	Config

	mu    sync.RWMutex // Protects everything below here
	nodes []*node
	urlIX map[string]int // Converts URL back to index
}

// New constructs a registry from a list of URLs. Every URL starts with MaxScore. An empty list or
// a duplicate URL is an error.
func New(config Config, urls []string) (*Registry, error) {
	t := &Registry{Config: config}
	if len(urls) == 0 {
		return nil, errors.New(me + ": No servers in list")
	}

	if t.MaxScore < 0 {
		return nil, fmt.Errorf(me+": MaxScore is negative: %d", t.MaxScore)
	}
	if t.SuccessDelta < 0 {
		return nil, fmt.Errorf(me+": SuccessDelta is negative: %d", t.SuccessDelta)
	}
	if t.FailureDelta < 0 {
		return nil, fmt.Errorf(me+": FailureDelta is negative: %d", t.FailureDelta)
	}

	if t.MaxScore == 0 {
		t.MaxScore = DefaultConfig.MaxScore
	}
	if t.SuccessDelta == 0 {
		t.SuccessDelta = DefaultConfig.SuccessDelta
	}
	if t.FailureDelta == 0 {
		t.FailureDelta = DefaultConfig.FailureDelta
	}
	if t.Floor > t.MaxScore {
		return nil, fmt.Errorf(me+": Floor %d is above MaxScore %d", t.Floor, t.MaxScore)
	}

	t.nodes = make([]*node, 0, len(urls))
	t.urlIX = make(map[string]int)
	for ix, u := range urls {
		if _, ok := t.urlIX[u]; ok {
			return nil, errors.New(me + ": Duplicate Server in list: " + u)
		}
		t.urlIX[u] = ix
		t.nodes = append(t.nodes, &node{Node: Node{Index: ix, URL: u, Score: t.MaxScore}})
	}

	return t, nil
}

// TopK returns copies of the k highest scoring nodes in descending score order. Equal scores are
// returned in original list order. If k is out of range all nodes are returned.
func (t *Registry) TopK(k int) []Node {
	t.rlock()
	defer t.runlock()

	ns := make([]Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		ns = append(ns, n.Node)
	}
	sort.SliceStable(ns, func(i, j int) bool {
		return ns[i].Score > ns[j].Score
	})

	if k <= 0 || k > len(ns) {
		return ns
	}

	return ns[:k]
}

// RecordSuccess raises the node's score by SuccessDelta, capped at MaxScore, and remembers the
// latency. Return false if the index is not valid.
func (t *Registry) RecordSuccess(ix int, latency time.Duration) bool {
	t.lock()
	defer t.unlock()

	if ix < 0 || ix >= len(t.nodes) {
		return false
	}
	n := t.nodes[ix]
	n.Score += t.SuccessDelta
	if n.Score > t.MaxScore {
		n.Score = t.MaxScore
	}
	if latency < 0 {
		latency = 0
	}
	n.LastLatency = latency
	n.successes++

	return true
}

// RecordFailure lowers the node's score by FailureDelta, but never below Floor. Return false if
// the index is not valid.
func (t *Registry) RecordFailure(ix int) bool {
	t.lock()
	defer t.unlock()

	if ix < 0 || ix >= len(t.nodes) {
		return false
	}
	n := t.nodes[ix]
	n.Score -= t.FailureDelta
	if n.Score < t.Floor {
		n.Score = t.Floor
	}
	n.failures++

	return true
}

// Node returns a copy of the node at ix.
func (t *Registry) Node(ix int) (Node, bool) {
	t.rlock()
	defer t.runlock()

	if ix < 0 || ix >= len(t.nodes) {
		return Node{}, false
	}

	return t.nodes[ix].Node, true
}

// Lookup returns a copy of the node with the given URL.
func (t *Registry) Lookup(url string) (Node, bool) {
	t.rlock()
	defer t.runlock()

	ix, ok := t.urlIX[url]
	if !ok {
		return Node{}, false
	}

	return t.nodes[ix].Node, true
}

// Nodes returns copies of all nodes in the order originally supplied.
func (t *Registry) Nodes() []Node {
	t.rlock()
	defer t.runlock()

	ns := make([]Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		ns = append(ns, n.Node)
	}

	return ns
}

// Len returns the count of nodes. It never changes after New().
func (t *Registry) Len() int {
	return len(t.nodes)
}

func (t *Registry) lock() {
	t.mu.Lock()
}

func (t *Registry) unlock() {
	t.mu.Unlock()
}

func (t *Registry) rlock() {
	t.mu.RLock()
}

func (t *Registry) runlock() {
	t.mu.RUnlock()
}
