// ABOUTME: Thread-safe TTL cache for deduplicating inbound message IDs
// ABOUTME: Drivers can redeliver messages after reconnects; seen IDs are dropped before storage

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores the timestamp and list element for a cached key.
type cacheEntry struct {
	timestamp time.Time
	element   *list.Element
}

// Cache tracks recently seen message IDs so redelivered inbound messages
// are processed once. TTL-based and size-limited; a doubly-linked list
// maintains insertion order for O(1) eviction.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*cacheEntry
	order   *list.List // keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache with the given TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// CheckAndMark atomically checks whether a message ID has been seen and
// marks it if not. Returns true if the ID was already seen (duplicate),
// false if it is new and now marked.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.seen[key]; ok {
		if time.Since(entry.timestamp) < c.ttl {
			return true
		}
		// Expired entry: refresh it below.
		c.order.Remove(entry.element)
		delete(c.seen, key)
	}

	// Evict oldest entries if at capacity.
	for c.order.Len() >= c.maxSize {
		front := c.order.Front()
		if front == nil {
			break
		}
		c.order.Remove(front)
		delete(c.seen, front.Value.(string))
	}

	c.seen[key] = &cacheEntry{
		timestamp: time.Now(),
		element:   c.order.PushBack(key),
	}
	return false
}

// Len returns the number of tracked IDs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// cleanup periodically removes expired entries.
func (c *Cache) cleanup() {
	interval := c.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired walks from the oldest entry forward, stopping at the
// first unexpired one.
func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.order.Front(); e != nil; {
		key := e.Value.(string)
		entry := c.seen[key]
		if entry == nil || time.Since(entry.timestamp) < c.ttl {
			break
		}
		next := e.Next()
		c.order.Remove(e)
		delete(c.seen, key)
		e = next
	}
}
