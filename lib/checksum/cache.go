package checksum

import (
	"fmt"
	"os"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	// DefaultCacheTTL bounds how long an unused digest stays cached.
	DefaultCacheTTL = 10 * time.Minute

	// DefaultCacheCapacity bounds the number of cached files.
	DefaultCacheCapacity = 256
)

// cachedDigest is a digest together with the file identity it was computed for.
type cachedDigest struct {
	size    int64
	modTime time.Time
	digest  string
}

// Cache remembers file digests and revalidates them against the file's size
// and modification time on every lookup, so a file replaced on disk is always
// rehashed.
type Cache struct {
	items *ttlcache.Cache[string, cachedDigest]
}

// NewCache creates a digest cache. Non-positive arguments select the defaults.
func NewCache(ttl time.Duration, capacity uint64) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if capacity == 0 {
		capacity = DefaultCacheCapacity
	}

	return &Cache{
		items: ttlcache.New[string, cachedDigest](
			ttlcache.WithTTL[string, cachedDigest](ttl),
			ttlcache.WithCapacity[string, cachedDigest](capacity),
		),
	}
}

// FileChecksum implements Calculator.
func (c *Cache) FileChecksum(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}

	if item := c.items.Get(path); item != nil {
		cached := item.Value()
		if cached.size == info.Size() && cached.modTime.Equal(info.ModTime()) {
			return cached.digest, nil
		}
	}

	sum, err := Compute(path)
	if err != nil {
		c.items.Delete(path)
		return "", err
	}

	// Keyed on the pre-hash stat: a write racing the hash changes the
	// modification time and forces a recompute on the next lookup.
	c.items.Set(path, cachedDigest{
		size:    info.Size(),
		modTime: info.ModTime(),
		digest:  sum,
	}, ttlcache.DefaultTTL)

	return sum, nil
}

// Len returns the number of cached digests.
func (c *Cache) Len() int {
	return c.items.Len()
}
