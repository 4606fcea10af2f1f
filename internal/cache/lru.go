package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// LRUCache bounds its size by evicting the least recently read entry and
// drops entries older than the TTL.
type LRUCache[T any] struct {
	mu     sync.Mutex
	limit  int
	ttl    time.Duration
	index  map[string]*list.Element
	order  *list.List // front is most recent
	now    func() time.Time
	hits   int64
	misses int64
}

type entry[T any] struct {
	key     string
	value   T
	expires time.Time
}

// Stats counts lookups since creation.
type Stats struct {
	Size   int
	Hits   int64
	Misses int64
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		limit: max(maxSize, 1),
		ttl:   ttl,
		index: make(map[string]*list.Element),
		order: list.New(),
		now:   time.Now,
	}
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		e := el.Value.(*entry[T])
		if !c.now().After(e.expires) {
			c.order.MoveToFront(el)
			c.hits++
			return e.value, true
		}
		c.unlink(el)
	}
	c.misses++
	var zero T
	return zero, false
}

func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, value: value, expires: c.now().Add(c.ttl)}
	if el, ok := c.index[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(e)
	for c.order.Len() > c.limit {
		c.unlink(c.order.Back())
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.unlink(el)
	}
}

// DeletePrefix drops every key starting with prefix and returns how many
// were removed.
func (c *LRUCache[T]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeWhere(func(e *entry[T]) bool { return strings.HasPrefix(e.key, prefix) })
}

// CleanExpired drops expired entries and returns how many were removed.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	return c.removeWhere(func(e *entry[T]) bool { return now.After(e.expires) })
}

func (c *LRUCache[T]) removeWhere(match func(*entry[T]) bool) int {
	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if match(el.Value.(*entry[T])) {
			c.unlink(el)
			n++
		}
		el = next
	}
	return n
}

func (c *LRUCache[T]) unlink(el *list.Element) {
	delete(c.index, el.Value.(*entry[T]).key)
	c.order.Remove(el)
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *LRUCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: len(c.index), Hits: c.hits, Misses: c.misses}
}
