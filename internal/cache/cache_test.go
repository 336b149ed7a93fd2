package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

var ctx = context.Background()

// fakeClock lets tests move time without sleeping.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(t *testing.T, opts ...MemoryOption) (*MemoryCache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(append(opts, withClock(clock.now))...)
	t.Cleanup(func() { c.Close() })
	return c, clock
}

func TestMemoryCacheGetSet(t *testing.T) {
	c, _ := newTestCache(t)

	if _, found, _ := c.Get(ctx, "/content/lesson-001.json"); found {
		t.Error("expected cache miss for non-existent key")
	}

	doc := []byte(`{"id":"lesson-001"}`)
	if err := c.Set(ctx, "/content/lesson-001.json", doc, time.Minute); err != nil {
		t.Fatal(err)
	}
	// The cache keeps its own copy.
	doc[0] = 'X'

	got, found, err := c.Get(ctx, "/content/lesson-001.json")
	if err != nil || !found {
		t.Fatalf("expected cache hit, got found=%v err=%v", found, err)
	}
	if string(got) != `{"id":"lesson-001"}` {
		t.Errorf("unexpected data: %s", got)
	}

	// Overwriting keeps one entry.
	_ = c.Set(ctx, "/content/lesson-001.json", []byte(`{"id":"v2"}`), time.Minute)
	got, _, _ = c.Get(ctx, "/content/lesson-001.json")
	if string(got) != `{"id":"v2"}` || c.Len() != 1 {
		t.Errorf("after overwrite: data=%s len=%d", got, c.Len())
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c, clock := newTestCache(t)

	_ = c.Set(ctx, "short", []byte("{}"), time.Minute)
	_ = c.Set(ctx, "long", []byte("{}"), time.Hour)
	_ = c.Set(ctx, "never", []byte("{}"), 0)

	if _, found, _ := c.Get(ctx, "never"); found {
		t.Error("zero ttl must not be stored")
	}

	clock.advance(time.Minute)
	if _, found, _ := c.Get(ctx, "short"); found {
		t.Error("expected miss once the ttl has elapsed")
	}
	if c.Len() != 1 {
		t.Errorf("expired entry should be dropped on access, len=%d", c.Len())
	}

	clock.advance(time.Hour)
	c.sweep()
	if c.Len() != 0 {
		t.Errorf("sweep should drop expired entries, len=%d", c.Len())
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, WithMaxEntries(2))

	_ = c.Set(ctx, "a", []byte("a"), time.Minute)
	_ = c.Set(ctx, "b", []byte("b"), time.Minute)
	c.Get(ctx, "a") // b is now least recently used
	_ = c.Set(ctx, "c", []byte("c"), time.Minute)

	if _, found, _ := c.Get(ctx, "b"); found {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, found, _ := c.Get(ctx, k); !found {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t)

	for _, k := range []string{"a", "b", "c"} {
		_ = c.Set(ctx, k, []byte("{}"), time.Minute)
	}
	_ = c.Invalidate(ctx, "a")
	_ = c.Invalidate(ctx, "missing")

	if _, found, _ := c.Get(ctx, "a"); found {
		t.Error("expected a to be invalidated")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}

	_ = c.InvalidateAll(ctx)
	if c.Len() != 0 {
		t.Errorf("expected 0 entries after InvalidateAll, got %d", c.Len())
	}
	// Still usable afterwards.
	_ = c.Set(ctx, "d", []byte("{}"), time.Minute)
	if _, found, _ := c.Get(ctx, "d"); !found {
		t.Error("cache unusable after InvalidateAll")
	}
}

func TestMemoryCacheCloseIdempotent(t *testing.T) {
	c := NewMemoryCache()
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew(t *testing.T) {
	c, err := New(ctx, "memory", "")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, ok := c.(*MemoryCache); !ok {
		t.Errorf("expected *MemoryCache, got %T", c)
	}

	if _, err := New(ctx, "redis", ""); err == nil {
		t.Error("expected error for redis without url")
	}
	if _, err := New(ctx, "redis", "::bad::"); err == nil {
		t.Error("expected error for malformed redis url")
	}
	if _, err := New(ctx, "memcached", ""); err == nil {
		t.Error("expected error for unknown cache type")
	}
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	c, err := NewRedisCache(ctx, url, "lessonkit:test:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	defer c.InvalidateAll(ctx)

	if err := c.Set(ctx, "lesson-001", []byte(`{"id":"lesson-001"}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	data, found, err := c.Get(ctx, "lesson-001")
	if err != nil || !found || string(data) != `{"id":"lesson-001"}` {
		t.Fatalf("Get = %q, %v, %v", data, found, err)
	}

	if err := c.Invalidate(ctx, "lesson-001"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := c.Get(ctx, "lesson-001"); found {
		t.Error("expected miss after Invalidate")
	}

	_ = c.Set(ctx, "a", []byte("{}"), time.Minute)
	_ = c.Set(ctx, "b", []byte("{}"), time.Minute)
	if err := c.InvalidateAll(ctx); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := c.Get(ctx, "a"); found {
		t.Error("expected miss after InvalidateAll")
	}
}
