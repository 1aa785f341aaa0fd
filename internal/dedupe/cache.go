// ABOUTME: TTL and size-bounded cache of already-processed inbound message keys.
// ABOUTME: Prevents double relay when the underlying client redelivers a message.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// MessageKey builds the cache key for one message of one session.
func MessageKey(sessionID, messageID string) string {
	return sessionID + "|" + messageID
}

// entry pairs a key's insertion time with its position in the eviction list.
type entry struct {
	at   time.Time
	elem *list.Element
}

// Cache remembers which message keys have been processed within a TTL
// window, bounded in size with oldest-first eviction. A background goroutine
// sweeps expired entries until Close is called.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // keys oldest-first; O(1) eviction
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache holding at most maxSize keys for at most ttl each.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// CheckAndMark atomically reports whether key was already seen within the
// TTL, marking it as seen when it was not. The check and the mark share one
// critical section so two concurrent deliveries of the same message cannot
// both pass.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[key]; ok {
		if time.Since(e.at) < c.ttl {
			return true
		}
		// Expired but not yet swept: refresh in place.
		e.at = time.Now()
		c.order.MoveToBack(e.elem)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	c.seen[key] = &entry{at: time.Now(), elem: c.order.PushBack(key)}
	return false
}

// Len returns the number of keys currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// evictOldest drops the front of the eviction list. Caller holds mu.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

// sweep periodically removes expired entries.
func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, e := range c.seen {
				if now.Sub(e.at) > c.ttl {
					c.order.Remove(e.elem)
					delete(c.seen, key)
				}
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

// Close stops the sweeper goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
