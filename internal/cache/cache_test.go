package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}

	c.Set("x", "1")
	c.Set("y", "2")
	now = now.Add(2 * time.Minute)
	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}

	st := c.Stats()
	if st.Misses != 1 || st.Hits != 0 || st.Size != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("invoice:1:v1", 1)
	c.Set("invoice:1:v2", 2)
	c.Set("invoice:10:v1", 3)

	if n := c.DeletePrefix("invoice:1:"); n != 2 {
		t.Errorf("DeletePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("invoice:10:v1"); !ok {
		t.Error("unrelated key removed")
	}
}

func TestLoaderDeduplicatesConcurrentLoads(t *testing.T) {
	l := NewLoader[string](NewLRUCache[string](10, time.Minute))
	var calls atomic.Int32
	release := make(chan struct{})

	load := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "pdf", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := l.GetOrLoad(context.Background(), "k", load); err != nil || v != "pdf" {
				t.Errorf("GetOrLoad() = %q, %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("load called %d times, want 1", calls.Load())
	}
	if _, err := l.GetOrLoad(context.Background(), "k", load); err != nil || calls.Load() != 1 {
		t.Errorf("cached value should be served without loading")
	}
}

func TestLoaderDoesNotCacheErrors(t *testing.T) {
	l := NewLoader[int](NewLRUCache[int](10, time.Minute))
	boom := errors.New("boom")
	if _, err := l.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	v, err := l.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("GetOrLoad() = %d, %v", v, err)
	}
}

func TestManagerCleanup(t *testing.T) {
	c := NewLRUCache[int](10, time.Millisecond)
	c.Set("a", 1)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(5 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	if c.Size() != 0 {
		t.Errorf("expired entry not cleaned, size %d", c.Size())
	}
}
