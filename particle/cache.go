package particle

import "sync"

// Key identifies one cached sample list. Any change to a component is
// a different key and therefore a cache miss; view-mode and matrix
// changes are handled by clearing the whole cache instead, since they
// invalidate every ribbon at once.
type Key struct {
	Ribbon        uint32
	Density       float64
	SizeVariation float64
	Dist          Distribution
}

// Cache memoizes sampler output per ribbon and parameter set.
//
// The cache is mutated only by the generation scheduler's calculating
// phase, but stays mutex-guarded so progress inspection and tests can
// read it from other goroutines. A soft limit of 0 keeps it unbounded,
// which is the expected configuration: entries accumulate per ribbon
// and parameter combination actually used, and parameter changes clear
// everything anyway.
type Cache struct {
	mu        sync.Mutex
	entries   map[Key]*cacheEntry
	softLimit int
	tick      int64 // monotonic access counter for eviction order
}

type cacheEntry struct {
	points []Point
	atime  int64
}

// NewCache creates a cache with the given soft limit.
// A softLimit of 0 means unlimited.
func NewCache(softLimit int) *Cache {
	return &Cache{
		entries:   make(map[Key]*cacheEntry),
		softLimit: softLimit,
	}
}

// GetOrCompute returns the cached points for the key, computing and
// storing them on a miss. compute runs under the lock; only one
// computation per key can ever happen.
func (c *Cache) GetOrCompute(key Key, compute func() []Point) []Point {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.tick++
		e.atime = c.tick
		return e.points
	}

	points := compute()
	c.tick++
	c.entries[key] = &cacheEntry{points: points, atime: c.tick}

	if c.softLimit > 0 && len(c.entries) > c.softLimit {
		c.evictOldest()
	}
	return points
}

// Get returns the cached points for the key, if present.
func (c *Cache) Get(key Key) ([]Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.tick++
	e.atime = c.tick
	return e.points, true
}

// InvalidateAll clears the cache. Call on any change to density,
// distribution, size variation, view mode, or the underlying matrix.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*cacheEntry)
	c.tick = 0
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldest removes least-recently-used entries until the cache is
// back under 3/4 of the soft limit. Caller must hold c.mu.
func (c *Cache) evictOldest() {
	target := c.softLimit * 3 / 4
	if target < 1 {
		target = 1
	}
	toEvict := len(c.entries) - target
	if toEvict <= 0 {
		return
	}

	type aged struct {
		key   Key
		atime int64
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{key: k, atime: e.atime})
	}
	// Selection of the oldest entries; eviction batches are small.
	for i := 0; i < toEvict && i < len(all); i++ {
		minIdx := i
		for j := i + 1; j < len(all); j++ {
			if all[j].atime < all[minIdx].atime {
				minIdx = j
			}
		}
		if minIdx != i {
			all[i], all[minIdx] = all[minIdx], all[i]
		}
		delete(c.entries, all[i].key)
	}
}
