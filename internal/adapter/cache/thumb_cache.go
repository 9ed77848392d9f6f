package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"
)

// ThumbCache is an LRU of rendered thumbnails with a TTL. Entries are keyed
// by image name, modification time and size, so a replaced file misses.
type ThumbCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	gen     uint64
}

type cacheEntry struct {
	name      string
	data      []byte
	timestamp time.Time
	gen       uint64
}

func NewThumbCache(maxSize int, ttl time.Duration) *ThumbCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ThumbCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(name string, modTime time.Time, size int64) string {
	data := []byte(name)
	data = binary.BigEndian.AppendUint64(data, uint64(modTime.UnixNano()))
	data = binary.BigEndian.AppendUint64(data, uint64(size))
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func (c *ThumbCache) Get(name string, modTime time.Time, size int64) ([]byte, bool) {
	c.mu.RLock()
	key := cacheKey(name, modTime, size)
	entry, exists := c.entries[key]
	currentGen := c.gen
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Since(entry.timestamp) > c.ttl || entry.gen != currentGen {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.moveToEnd(key)
	c.mu.Unlock()

	return entry.data, true
}

func (c *ThumbCache) Put(name string, modTime time.Time, size int64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(name, modTime, size)
	entry := &cacheEntry{
		name:      name,
		data:      data,
		timestamp: time.Now(),
		gen:       c.gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

// InvalidateName drops every entry rendered from name.
func (c *ThumbCache) InvalidateName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.name == name {
			delete(c.entries, key)
			c.removeFromOrder(key)
		}
	}
}

// Invalidate drops everything.
func (c *ThumbCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.gen++
}

func (c *ThumbCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ThumbCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *ThumbCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *ThumbCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
