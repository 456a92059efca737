// ABOUTME: Thread-safe TTL cache with bounded size and insertion-order eviction
// ABOUTME: Backs the read-through copy of server-owned session summaries

package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry stores a value with its write time and list element.
type entry[K comparable, V any] struct {
	value   V
	written time.Time
	element *list.Element
}

// Cache is a thread-safe, TTL-based, size-limited key/value cache.
// Uses a doubly-linked list in write order for O(1) eviction.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	items   map[K]*entry[K, V]
	order   *list.List // keys, oldest write at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache whose entries expire ttl after their last write.
// A background goroutine periodically drops expired entries until Close.
func New[K comparable, V any](ttl time.Duration, maxSize int) *Cache[K, V] {
	c := &Cache[K, V]{
		items:   make(map[K]*entry[K, V]),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the value for key if present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	e, ok := c.items[key]
	if !ok || c.now().Sub(e.written) >= c.ttl {
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, evicting the oldest entry when full.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if e, exists := c.items[key]; exists {
		e.value = value
		e.written = now
		c.order.MoveToBack(e.element)
		return
	}

	if c.maxSize > 0 && len(c.items) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.items[key] = &entry[K, V]{value: value, written: now, element: elem}
}

// Delete removes key.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.order.Remove(e.element)
		delete(c.items, key)
	}
}

// Len returns the number of stored entries, including expired ones not yet cleaned.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache[K, V]) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(K)
	c.order.Remove(front)
	delete(c.items, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache[K, V]) cleanup() {
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

// runCleanup removes all expired entries.
func (c *Cache[K, V]) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.items {
		if now.Sub(e.written) >= c.ttl {
			c.order.Remove(e.element)
			delete(c.items, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache[K, V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
