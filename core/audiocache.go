package conversation

import (
	"sync"
	"time"

	"github.com/functiomed/assistant-core/core/narration"
)

const (
	defaultAudioCacheCapacity = 3
	defaultAudioCacheTTL      = 5 * time.Minute
)

type cacheEntry struct {
	key       string
	resource  *narration.Audio
	createdAt time.Time
	expiresAt time.Time
}

// audioCache is a bounded, time-expiring store of synthesized narration
// resources, keeping replays of recent answers from hitting the synthesis
// endpoint again. Entries are evicted oldest-first by insertion order when
// the capacity is exceeded, and lazily dropped once past their expiry.
// Eviction always releases the underlying resource.
type audioCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration

	// entries are kept in insertion order; index 0 is the oldest.
	entries []cacheEntry

	now func() time.Time

	janitorStop chan struct{}
	janitorOnce sync.Once
}

func newAudioCache(capacity int, ttl time.Duration) *audioCache {
	if capacity <= 0 {
		capacity = defaultAudioCacheCapacity
	}
	if ttl <= 0 {
		ttl = defaultAudioCacheTTL
	}

	return &audioCache{
		capacity:    capacity,
		ttl:         ttl,
		now:         time.Now,
		janitorStop: make(chan struct{}),
	}
}

// startJanitor proactively sweeps expired entries so their resources are
// released even when nothing touches the cache. Lazy expiry on access keeps
// working without it.
func (c *audioCache) startJanitor(interval time.Duration) {
	if c == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.evictExpired()
			case <-c.janitorStop:
				return
			}
		}
	}()
}

func (c *audioCache) Close() {
	if c == nil {
		return
	}
	c.janitorOnce.Do(func() { close(c.janitorStop) })
	c.Clear()
}

func (c *audioCache) Get(key string) (*narration.Audio, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpiredLocked()
	for _, entry := range c.entries {
		if entry.key == key {
			return entry.resource, true
		}
	}
	return nil, false
}

func (c *audioCache) Put(key string, resource *narration.Audio) {
	if c == nil || resource == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpiredLocked()

	now := c.now()
	entry := cacheEntry{
		key:       key,
		resource:  resource,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}

	for i := range c.entries {
		if c.entries[i].key == key {
			if c.entries[i].resource != resource {
				c.entries[i].resource.Release()
			}
			c.entries[i] = entry
			return
		}
	}

	for len(c.entries) >= c.capacity {
		c.entries[0].resource.Release()
		c.entries = c.entries[1:]
	}

	c.entries = append(c.entries, entry)
}

func (c *audioCache) Len() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked()
	return len(c.entries)
}

func (c *audioCache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		entry.resource.Release()
	}
	c.entries = nil
}

func (c *audioCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked()
}

// evictExpiredLocked is a version of [audioCache.evictExpired] that is safe
// to call from a locked context.
func (c *audioCache) evictExpiredLocked() {
	now := c.now()
	kept := c.entries[:0]
	for _, entry := range c.entries {
		if entry.expiresAt.After(now) {
			kept = append(kept, entry)
			continue
		}
		entry.resource.Release()
	}
	c.entries = kept
}
