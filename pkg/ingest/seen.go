package ingest

import "sync"

// seenCache is a bounded set of message ids already dispatched in this
// process lifetime. Oldest entries are evicted first. Not durable: it resets
// on restart and correctness never depends on it.
type seenCache struct {
	mu    sync.Mutex
	limit int
	order []string
	set   map[string]struct{}
}

func newSeenCache(limit int) *seenCache {
	if limit <= 0 {
		limit = 4096
	}
	return &seenCache{
		limit: limit,
		set:   make(map[string]struct{}, limit),
	}
}

// Add inserts id and reports whether it was newly added. Returns false when
// the id was already present.
func (c *seenCache) Add(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.set[id]; ok {
		return false
	}

	c.set[id] = struct{}{}
	c.order = append(c.order, id)

	if len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.set, oldest)
	}

	return true
}

// Len returns the number of cached ids.
func (c *seenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.set)
}
