package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// LRUCache holds at most capacity entries. Entries live for ttl; an expired
// entry reads as a miss and is dropped on access or by CleanExpired.
type LRUCache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	index    map[string]*list.Element
	order    *list.List // front is most recently used
	now      func() time.Time
	stats    Stats
}

// Stats counts cache traffic since creation.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

type entry[V any] struct {
	key     string
	value   V
	expires time.Time
}

var _ Cache[int] = (*LRUCache[int])(nil)

// NewLRUCache creates an LRU cache. A capacity below 1 is raised to 1.
func NewLRUCache[V any](capacity int, ttl time.Duration) *LRUCache[V] {
	return &LRUCache[V]{
		capacity: max(capacity, 1),
		ttl:      ttl,
		index:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		e := el.Value.(*entry[V])
		if !c.expired(e, c.now()) {
			c.order.MoveToFront(el)
			c.stats.Hits++
			return e.value, true
		}
		c.drop(el)
	}
	c.stats.Misses++
	var zero V
	return zero, false
}

func (c *LRUCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[V]{key: key, value: value, expires: c.now().Add(c.ttl)}
	if el, ok := c.index[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(e)

	for c.order.Len() > c.capacity {
		c.drop(c.order.Back())
		c.stats.Evictions++
	}
}

func (c *LRUCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.drop(el)
	}
}

func (c *LRUCache[V]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, el := range c.index {
		if strings.HasPrefix(key, prefix) {
			c.drop(el)
			n++
		}
	}
	return n
}

// CleanExpired drops every expired entry and returns how many went.
func (c *LRUCache[V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	// prev is read before drop unlinks el
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if c.expired(el.Value.(*entry[V]), now) {
			c.drop(el)
			n++
		}
		el = prev
	}
	return n
}

func (c *LRUCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *LRUCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *LRUCache[V]) expired(e *entry[V], now time.Time) bool {
	return now.After(e.expires)
}

func (c *LRUCache[V]) drop(el *list.Element) {
	delete(c.index, el.Value.(*entry[V]).key)
	c.order.Remove(el)
}
