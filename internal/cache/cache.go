/*
Package cache holds recent upstream DoH responses keyed by a fingerprint of the raw query bytes.

The fingerprint is a keyed SipHash-2-4 digest of the query as received on the wire (after any
base64url decoding of a GET request) so GET and POST forms of the same query share an entry. The
hash is fast and collision resistant enough to separate distinct queries; it is not meant to
withstand an adversary who knows the key, which is randomly generated per cache.

Entries are stamped when stored and treated as absent once they are TTL old. Expiry is only ever
checked on read. Memory is bounded by a least-recently-used limit on the number of entries.

	c, _ := cache.New(cache.Config{TTL: 300 * time.Second})
	fp := c.Fingerprint(query)
	if e, ok := c.Get(fp, time.Now()); ok {
		return e.Body
	}
	... resolve
	c.Put(fp, body, time.Now())

All methods are safe for concurrent use.
*/
package cache

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/dchest/siphash"
	lru "github.com/hashicorp/golang-lru/v2"
)

const me = "cache"

// Config is passed to New(). Zero values are replaced with the defaults.
type Config struct {
	TTL        time.Duration // Entries are absent once this old
	MaxEntries int           // LRU bound on the number of entries
}

var DefaultConfig = Config{TTL: 300 * time.Second, MaxEntries: 65536}

// Fingerprint is the fixed length digest of a query used as the cache key.
type Fingerprint uint64

// String returns the fingerprint as 16 hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// Entry is a cached response.
type Entry struct {
	Body      []byte
	CreatedAt time.Time
}

// Age returns how old the entry is at time now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

type cacheStats struct {
	hits      int
	misses    int
	expired   int // Subset of misses where an entry was present but too old
	stores    int
	evictions int
}

// Cache is the response cache. Construct with New().
type Cache struct {
	Config

	k0, k1  uint64 // siphash-2-4 key
	entries *lru.Cache[Fingerprint, Entry]

	mu sync.Mutex // Protects stats
	cacheStats
}

// New constructs a Cache with a random fingerprint key.
func New(config Config) (*Cache, error) {
	var key [16]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf(me+": Could not generate fingerprint key: %w", err)
	}

	return NewWithKey(config, binary.LittleEndian.Uint64(key[0:8]), binary.LittleEndian.Uint64(key[8:]))
}

// NewWithKey is New() with a caller supplied fingerprint key. Mostly useful for tests which want
// reproducible fingerprints across Cache instances.
func NewWithKey(config Config, k0, k1 uint64) (*Cache, error) {
	t := &Cache{Config: config, k0: k0, k1: k1}
	if t.TTL < 0 {
		return nil, fmt.Errorf(me+": TTL is negative: %s", t.TTL)
	}
	if t.MaxEntries < 0 {
		return nil, fmt.Errorf(me+": MaxEntries is negative: %d", t.MaxEntries)
	}
	if t.TTL == 0 {
		t.TTL = DefaultConfig.TTL
	}
	if t.MaxEntries == 0 {
		t.MaxEntries = DefaultConfig.MaxEntries
	}

	var err error
	t.entries, err = lru.NewWithEvict[Fingerprint, Entry](t.MaxEntries, func(Fingerprint, Entry) {
		t.mu.Lock()
		t.evictions++
		t.mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf(me+": Could not construct LRU: %w", err)
	}

	return t, nil
}

// Fingerprint returns the digest of the raw query bytes. It is a pure function of query for the
// lifetime of the Cache.
func (t *Cache) Fingerprint(query []byte) Fingerprint {
	return Fingerprint(siphash.Hash(t.k0, t.k1, query))
}

// Get returns the entry for fp if present and younger than TTL at time now.
func (t *Cache) Get(fp Fingerprint, now time.Time) (Entry, bool) {
	e, ok := t.entries.Get(fp)
	expired := ok && e.Age(now) >= t.TTL

	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case !ok:
		t.misses++
	case expired:
		t.misses++
		t.expired++
	default:
		t.hits++
		return e, true
	}

	return Entry{}, false
}

// Put stores a copy of body under fp stamped with now, replacing any previous entry.
func (t *Cache) Put(fp Fingerprint, body []byte, now time.Time) {
	e := Entry{Body: append([]byte(nil), body...), CreatedAt: now}
	t.entries.Add(fp, e)

	t.mu.Lock()
	t.stores++
	t.mu.Unlock()
}

// Len returns the number of physically present entries, expired or not.
func (t *Cache) Len() int {
	return t.entries.Len()
}

// Name implements the reporter interface
func (t *Cache) Name() string {
	return "Cache"
}

/*
Report implements the reporter interface.

Output:

	lookups=12 hits=7 misses=5 (2 expired) stores=5 evicted=0 size=3/65536 ttl=5m0s
*/
func (t *Cache) Report(resetCounters bool) string {
	size := t.entries.Len()

	t.mu.Lock()
	defer t.mu.Unlock()

	s := fmt.Sprintf("lookups=%d hits=%d misses=%d (%d expired) stores=%d evicted=%d size=%d/%d ttl=%s",
		t.hits+t.misses, t.hits, t.misses, t.expired, t.stores, t.evictions, size, t.MaxEntries, t.TTL)
	if resetCounters {
		t.cacheStats = cacheStats{}
	}

	return s
}
