package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *time.Time) {
	c := NewLRUCache[string](size, ttl)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("summary", "a")
	if v, ok := c.Get("summary"); !ok || v != "a" {
		t.Errorf("Get() = %q, %v", v, ok)
	}

	c.Set("summary", "b")
	if v, _ := c.Get("summary"); v != "b" {
		t.Errorf("overwrite Get() = %q", v)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a") // a is now most recent
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, now := newTestCache(10, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	*now = now.Add(2 * time.Minute)
	c.Set("c", "3")

	if removed := c.CleanExpired(); removed != 2 {
		t.Errorf("CleanExpired() = %d, want 2", removed)
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should survive")
	}

	*now = now.Add(2 * time.Minute)
	if _, ok := c.Get("c"); ok {
		t.Error("expired entry should miss")
	}
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	c.Delete("a")
	if c.Size() != 1 {
		t.Errorf("Size() after Delete = %d", c.Size())
	}
	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size() after Purge = %d", c.Size())
	}
	c.Set("d", "4")
	if _, ok := c.Get("d"); !ok {
		t.Error("cache should be usable after Purge")
	}
}

func TestManager(t *testing.T) {
	c, now := newTestCache(10, time.Second)
	c.Set("a", "1")
	*now = now.Add(time.Minute)

	m := NewManager()
	m.Register("summary", c)
	if removed := m.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestLRUCache_GetOrLoad(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	var calls atomic.Int32
	load := func() (string, error) {
		calls.Add(1)
		return "snap", nil
	}

	v, hit, err := c.GetOrLoad("ledger", load)
	if err != nil || hit || v != "snap" {
		t.Fatalf("first GetOrLoad() = %q, %v, %v", v, hit, err)
	}
	v, hit, err = c.GetOrLoad("ledger", load)
	if err != nil || !hit || v != "snap" {
		t.Fatalf("second GetOrLoad() = %q, %v, %v", v, hit, err)
	}
	if calls.Load() != 1 {
		t.Errorf("load ran %d times", calls.Load())
	}
}

func TestLRUCache_GetOrLoadSharesInflight(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	release := make(chan struct{})
	var calls atomic.Int32
	load := func() (string, error) {
		calls.Add(1)
		<-release
		return "snap", nil
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, _, err := c.GetOrLoad("ledger", load); err != nil || v != "snap" {
				t.Errorf("GetOrLoad() = %q, %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n < 1 || n > 5 {
		t.Errorf("load ran %d times", n)
	}
	if _, ok := c.Get("ledger"); !ok {
		t.Error("loaded value should be cached")
	}
}

func TestLRUCache_PurgeDiscardsInflightLoad(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	v, _, err := c.GetOrLoad("ledger", func() (string, error) {
		c.Purge() // a write lands while the snapshot is being built
		return "stale", nil
	})
	if err != nil || v != "stale" {
		t.Fatalf("GetOrLoad() = %q, %v", v, err)
	}
	if _, ok := c.Get("ledger"); ok {
		t.Error("a load overlapping Purge must not be cached")
	}
}

func TestLRUCache_GetOrLoadError(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	boom := errors.New("store down")
	if _, _, err := c.GetOrLoad("ledger", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if c.Size() != 0 {
		t.Error("failed load must not be cached")
	}
}
