// Package routecache holds normalized directions keyed by request parameters.
//
// The cache is an explicit object built once at startup and handed to the
// HTTP layer; the normalizers know nothing about it. Entries are evicted on
// whichever comes first: TTL expiry, checked lazily on read, or capacity
// pressure on the least recently used entry. Concurrent misses for the same
// key are not de-duplicated, since normalization is cheap and idempotent.
package routecache

import (
	"fmt"
	"time"

	"github.com/bluele/gcache"
)

const (
	DefaultSize = 500
	DefaultTTL  = 15 * time.Minute
)

// Options configures a Cache.
type Options struct {
	Size int
	TTL  time.Duration

	// Clock overrides the time source, for tests.
	Clock gcache.Clock
}

// Cache is an LRU cache with per-entry TTL. Values are encoded responses and
// must not be modified by callers.
type Cache struct {
	store gcache.Cache
	ttl   time.Duration
}

// New builds a cache. A nil opts, or a zero Size or TTL, uses DefaultSize
// and DefaultTTL. Negative values are rejected.
func New(opts *Options) (*Cache, error) {
	size, ttl := DefaultSize, DefaultTTL
	var clock gcache.Clock
	if opts != nil {
		if opts.Size < 0 {
			return nil, fmt.Errorf("cache size must not be negative, got %d", opts.Size)
		}
		if opts.TTL < 0 {
			return nil, fmt.Errorf("cache TTL must not be negative, got %v", opts.TTL)
		}
		if opts.Size > 0 {
			size = opts.Size
		}
		if opts.TTL > 0 {
			ttl = opts.TTL
		}
		clock = opts.Clock
	}

	builder := gcache.New(size).LRU().Expiration(ttl)
	if clock != nil {
		builder = builder.Clock(clock)
	}

	return &Cache{store: builder.Build(), ttl: ttl}, nil
}

// Get returns the value for key and refreshes its recency. An expired entry
// is removed and reported as a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	v, err := c.store.Get(key)
	if err != nil {
		return nil, false
	}
	data, ok := v.([]byte)
	return data, ok
}

// Set stores value under key, replacing any previous value.
func (c *Cache) Set(key string, value []byte) error {
	if err := c.store.Set(key, value); err != nil {
		return fmt.Errorf("failed to cache %q: %w", key, err)
	}
	return nil
}

// Remove drops key and reports whether it was present.
func (c *Cache) Remove(key string) bool {
	return c.store.Remove(key)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.store.Len(true)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.store.Purge()
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// HitRate returns hits / (hits + misses) since creation.
func (c *Cache) HitRate() float64 {
	return c.store.HitRate()
}
