package filter

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hugr-lab/featureql/catalog"
)

// Cache memoizes parsed filter expressions. Protocol layers tend to replay
// the same filter text across paginated requests, so re-parsing is wasted
// work. Cached expressions are immutable and shared safely between callers.
//
// Parse errors are not cached; malformed input is rejected cheaply anyway.
type Cache struct {
	entries *lru.Cache[cacheKey, Expression]
}

type cacheKey struct {
	dialect Dialect
	layer   string
	input   string
}

// NewCache creates a cache bounded to size entries. Non-positive sizes fall
// back to a single entry.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = 1
	}
	entries, _ := lru.New[cacheKey, Expression](size)
	return &Cache{entries: entries}
}

// Parse behaves like Parse but serves repeated (dialect, layer, input)
// triples from the cache.
func (c *Cache) Parse(input string, dialect Dialect, layer *catalog.Layer, maxDepth int) (Expression, error) {
	key := cacheKey{dialect: dialect, layer: layer.Name, input: input}
	if expr, ok := c.entries.Get(key); ok {
		return expr, nil
	}
	expr, err := Parse(input, dialect, layer, maxDepth)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, expr)
	return expr, nil
}

// Len returns the number of cached expressions.
func (c *Cache) Len() int { return c.entries.Len() }
