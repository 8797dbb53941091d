package parser

import (
	"container/list"
	"sync"
)

// LRUCache is a thread-safe, capacity-bounded Least-Recently-Used cache.
// Evicted values are handed to the onEvict callback after the lock is
// released, so the callback may block or take other locks.
//
// Usage:
//
//	cache := NewLRUCache[string, *ParsedSource](512, func(k string, v *ParsedSource) { v.evict() })
//	cache.Put(key, ps)
//	if v, ok := cache.Get(key); ok { ... }
type LRUCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	order    *list.List // front = most-recently used
	onEvict  func(K, V)
}

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

// NewLRUCache creates a new cache with the given capacity.
// Capacity must be >= 1; values <= 0 are normalised to 1.
func NewLRUCache[K comparable, V any](capacity int, onEvict func(K, V)) *LRUCache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
		onEvict:  onEvict,
	}
}

// Get returns the cached value and true if the key exists. A hit moves the
// entry to the front.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry[K, V]).value, true
}

// Put inserts or replaces a key/value pair, evicting the least-recently-used
// entry when the cache is full. A replaced value is passed to onEvict too.
func (c *LRUCache[K, V]) Put(key K, value V) {
	var evicted []lruEntry[K, V]

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*lruEntry[K, V])
		evicted = append(evicted, *entry)
		entry.value = value
		c.order.MoveToFront(el)
	} else {
		for c.order.Len() >= c.capacity {
			evicted = append(evicted, c.removeBackLocked())
		}
		c.items[key] = c.order.PushFront(&lruEntry[K, V]{key: key, value: value})
	}
	c.mu.Unlock()

	c.notify(evicted)
}

// Evict removes a specific key. It is a no-op if the key does not exist.
func (c *LRUCache[K, V]) Evict(key K) {
	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	entry := *el.Value.(*lruEntry[K, V])
	c.order.Remove(el)
	delete(c.items, key)
	c.mu.Unlock()

	c.notify([]lruEntry[K, V]{entry})
}

// Len returns the current number of items in the cache.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Cap returns the configured maximum capacity.
func (c *LRUCache[K, V]) Cap() int {
	return c.capacity
}

// Clear removes all items, passing each to onEvict.
func (c *LRUCache[K, V]) Clear() {
	var evicted []lruEntry[K, V]

	c.mu.Lock()
	for el := c.order.Front(); el != nil; el = el.Next() {
		evicted = append(evicted, *el.Value.(*lruEntry[K, V]))
	}
	c.order.Init()
	c.items = make(map[K]*list.Element, c.capacity)
	c.mu.Unlock()

	c.notify(evicted)
}

// removeBackLocked removes the least-recently-used element.
// Caller must hold c.mu and ensure the list is non-empty.
func (c *LRUCache[K, V]) removeBackLocked() lruEntry[K, V] {
	back := c.order.Back()
	entry := *back.Value.(*lruEntry[K, V])
	c.order.Remove(back)
	delete(c.items, entry.key)
	return entry
}

func (c *LRUCache[K, V]) notify(entries []lruEntry[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range entries {
		c.onEvict(e.key, e.value)
	}
}
