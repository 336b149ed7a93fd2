// Package cache stores fetched lesson documents between requests.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Cache keeps raw lesson documents keyed by the URL they were fetched from.
type Cache interface {
	// Get retrieves a document. found is false on a miss or after expiry.
	Get(ctx context.Context, key string) (data []byte, found bool, err error)

	// Set stores a document for ttl.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Invalidate removes one document, e.g. after its file changed.
	Invalidate(ctx context.Context, key string) error

	// InvalidateAll removes every document.
	InvalidateAll(ctx context.Context) error

	// Close releases background resources.
	Close() error
}

// DefaultMaxEntries bounds a MemoryCache unless WithMaxEntries says otherwise.
const DefaultMaxEntries = 512

type memEntry struct {
	key     string
	data    []byte
	expires time.Time
}

// MemoryCache is a process-local Cache. Expired documents are dropped on
// access and by a sweep every minute; when full, the least recently used
// document makes room.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front is most recently used
	max     int
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithMaxEntries caps the number of cached documents.
func WithMaxEntries(n int) MemoryOption {
	return func(c *MemoryCache) {
		if n > 0 {
			c.max = n
		}
	}
}

func withClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) { c.now = now }
}

// NewMemoryCache creates an in-memory cache and starts its expiry sweep.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		max:     DefaultMaxEntries,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.sweepLoop(time.Minute)
	return c
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	e := elem.Value.(*memEntry)
	if !c.now().Before(e.expires) {
		c.remove(elem)
		return nil, false, nil
	}
	c.lru.MoveToFront(elem)
	return e.data, true, nil
}

// Set implements Cache. A non-positive ttl stores nothing.
func (c *MemoryCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	e := &memEntry{key: key, data: append([]byte(nil), data...), expires: c.now().Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		elem.Value = e
		c.lru.MoveToFront(elem)
		return nil
	}
	for c.lru.Len() >= c.max {
		c.remove(c.lru.Back())
	}
	c.entries[key] = c.lru.PushFront(e)
	return nil
}

// Invalidate implements Cache.
func (c *MemoryCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.remove(elem)
	}
	return nil
}

// InvalidateAll implements Cache.
func (c *MemoryCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	return nil
}

// remove must be called with mu held.
func (c *MemoryCache) remove(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.entries, elem.Value.(*memEntry).key)
}

func (c *MemoryCache) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if !now.Before(elem.Value.(*memEntry).expires) {
			c.remove(elem)
		}
		elem = prev
	}
}

// Close stops the sweep. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// Len returns the number of cached documents, expired ones included until
// they are swept.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
