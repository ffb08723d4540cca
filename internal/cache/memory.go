package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/qidlink/internal/model"
)

// MemoryCache holds entity details in memory for the lifetime of one run
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves an entity detail from the cache
func (c *MemoryCache) Get(id string) (*model.EntityDetail, bool) {
	if val, found := c.cache.Get(CacheKey(id)); found {
		return val.(*model.EntityDetail), true
	}
	return nil, false
}

// Set stores an entity detail using the default TTL
func (c *MemoryCache) Set(id string, detail *model.EntityDetail) {
	c.cache.SetDefault(CacheKey(id), detail)
}
