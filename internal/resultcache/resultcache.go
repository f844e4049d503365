// Package resultcache holds transformed images in memory for local serving.
// When object storage is unreachable the pipeline registers results here and
// hands clients a local URL instead of a public one.
package resultcache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a cached result stays retrievable.
const DefaultTTL = time.Hour

type entry struct {
	data    []byte
	expires time.Time
}

// Cache is a TTL-bounded in-memory image store. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

// New creates a Cache and starts its expiry janitor. A non-positive ttl
// falls back to DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Put stores the image and returns its generated id.
func (c *Cache) Put(data []byte) string {
	id := uuid.New().String()
	c.mu.Lock()
	c.entries[id] = entry{data: data, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return id
}

// Get returns the image for id, or false when missing or expired.
func (c *Cache) Get(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		delete(c.entries, id)
		return nil, false
	}
	return e.data, true
}

// Len returns the number of live entries, expired ones included until the
// janitor sweeps them.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the janitor. Entries stay readable until they expire.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache) janitor() {
	interval := c.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for id, e := range c.entries {
				if now.After(e.expires) {
					delete(c.entries, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
