// ABOUTME: Bounded set of message IDs already handled during one sync run.
// ABOUTME: Lets the sync driver skip records repeated across page boundaries without a store lookup.

package dedupe

import (
	"container/list"
	"sync"
)

// DefaultSize bounds the cache at a few pages' worth of IDs
const DefaultSize = 1000

// Cache is a size-limited set of message IDs. When full, the ID marked
// longest ago is evicted. Uses a doubly-linked list for O(1) eviction.
type Cache struct {
	mu      sync.Mutex
	seen    map[int64]*list.Element
	order   *list.List // IDs in mark order (oldest at front)
	maxSize int
}

// New creates a cache holding at most maxSize IDs. Non-positive sizes use DefaultSize.
func New(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultSize
	}
	return &Cache{
		seen:    make(map[int64]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Check reports whether id has been marked and not yet evicted.
func (c *Cache) Check(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.seen[id]
	return ok
}

// CheckAndMark marks id and reports whether it was already present.
func (c *Cache) CheckAndMark(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return true
	}
	c.markLocked(id)
	return false
}

// Mark records id. Marking an existing id refreshes its position.
func (c *Cache) Mark(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(id)
}

// markLocked must be called with mu held.
func (c *Cache) markLocked(id int64) {
	if elem, ok := c.seen[id]; ok {
		c.order.MoveToBack(elem)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	c.seen[id] = c.order.PushBack(id)
}

// evictOldest must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	id, _ := front.Value.(int64)
	c.order.Remove(front)
	delete(c.seen, id)
}

// Len returns the number of IDs currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
