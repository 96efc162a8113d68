package capability

import "sync"

// Cache stores demand check results for the process lifetime, so a
// pipeline that uses the same task many times looks each capability up once.
type Cache struct {
	mu      sync.Mutex
	results map[string]CheckResult
}

var globalCache = NewCache()

// GlobalCache returns the shared process-level cache.
func GlobalCache() *Cache {
	return globalCache
}

// NewCache creates a new cache instance (useful for testing).
func NewCache() *Cache {
	return &Cache{results: make(map[string]CheckResult)}
}

// Get retrieves a cached result for a demand.
func (c *Cache) Get(demand string) (CheckResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[demand]
	return r, ok
}

// Set stores a result for a demand.
func (c *Cache) Set(demand string, result CheckResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[demand] = result
}

// ClearAll removes every cached result.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = make(map[string]CheckResult)
}
