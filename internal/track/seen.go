// ABOUTME: Thread-safe TTL cache recording which users have been reported
// ABOUTME: Bounded with O(1) oldest-entry eviction via a linked list

package track

import (
	"container/list"
	"sync"
	"time"
)

type seenEntry struct {
	timestamp time.Time
	element   *list.Element
}

// seenCache is a size-limited TTL set. It keeps first-seen reporting from
// firing more than once per user without growing without bound.
type seenCache struct {
	mu      sync.Mutex
	seen    map[string]*seenEntry
	order   *list.List // keys in insertion order, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

func newSeenCache(ttl time.Duration, maxSize int) *seenCache {
	c := &seenCache{
		seen:    make(map[string]*seenEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// checkAndMark atomically reports whether key was already seen and marks
// it if not.
func (c *seenCache) checkAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[key]
	if ok && time.Since(entry.timestamp) < c.ttl {
		return true
	}

	now := time.Now()
	if entry, exists := c.seen[key]; exists {
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	elem := c.order.PushBack(key)
	c.seen[key] = &seenEntry{timestamp: now, element: elem}
	return false
}

// evictOldest must be called with mu held.
func (c *seenCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

func (c *seenCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

func (c *seenCache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.seen {
		if now.Sub(entry.timestamp) > c.ttl {
			c.order.Remove(entry.element)
			delete(c.seen, key)
		}
	}
}

// close stops the cleanup goroutine. Safe to call multiple times.
func (c *seenCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
