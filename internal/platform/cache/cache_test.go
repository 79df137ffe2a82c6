package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"baykus/internal/testutil"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestCache_SetAndGet(t *testing.T) {
	t.Run("stores and retrieves value", func(t *testing.T) {
		c := New[string](10, 0)
		c.Set("key1", "value1")

		v, ok := c.Get("key1")
		testutil.AssertTrue(t, ok, "should find stored value")
		testutil.AssertEqual(t, v, "value1", "value should match")
	})

	t.Run("returns zero for missing key", func(t *testing.T) {
		c := New[int](10, 0)
		v, ok := c.Get("missing")
		testutil.AssertFalse(t, ok, "should not find missing key")
		testutil.AssertEqual(t, v, 0, "zero value")
	})

	t.Run("updates existing key", func(t *testing.T) {
		c := New[string](10, 0)
		c.Set("key1", "value1")
		c.Set("key1", "value2")

		v, _ := c.Get("key1")
		testutil.AssertEqual(t, v, "value2", "should have updated value")
		testutil.AssertEqual(t, c.Len(), 1, "size should still be 1")
	})

	t.Run("default capacity", func(t *testing.T) {
		c := New[string](0, 0)
		for i := 0; i < 150; i++ {
			c.Set(fmt.Sprintf("k%d", i), "v")
		}
		testutil.AssertEqual(t, c.Len(), 100, "capped at default capacity")
	})
}

func TestCache_TTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New[string](10, time.Minute, WithClock(clock.now))

	c.Set("a", "1")
	c.SetWithTTL("forever", "2", 0)

	clock.advance(30 * time.Second)
	_, ok := c.Get("a")
	testutil.AssertTrue(t, ok, "not expired yet")

	clock.advance(31 * time.Second)
	_, ok = c.Get("a")
	testutil.AssertFalse(t, ok, "expired after ttl")

	_, ok = c.Get("forever")
	testutil.AssertTrue(t, ok, "ttl 0 never expires")
}

func TestCache_CleanExpired(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := New[int](10, time.Second, WithClock(clock.now))
	c.Set("a", 1)
	c.Set("b", 2)
	c.SetWithTTL("c", 3, time.Hour)

	clock.advance(2 * time.Second)
	testutil.AssertEqual(t, c.CleanExpired(), 2, "two expired")
	testutil.AssertEqual(t, c.Len(), 1, "one left")
}

func TestCache_LRUEviction(t *testing.T) {
	c := New[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a pasa a ser el más reciente
	c.Set("c", 3)

	_, ok := c.Get("b")
	testutil.AssertFalse(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	testutil.AssertTrue(t, ok, "a survives")
	_, ok = c.Get("c")
	testutil.AssertTrue(t, ok, "c present")
}

func TestCache_GetOrLoad(t *testing.T) {
	c := New[string](10, 0)
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "loaded", nil
	}

	v, err := c.GetOrLoad(context.Background(), "k", load)
	testutil.RequireNoError(t, err, "first load")
	testutil.AssertEqual(t, v, "loaded", "value")
	_, _ = c.GetOrLoad(context.Background(), "k", load)
	testutil.AssertEqual(t, calls, 1, "second call served from cache")

	boom := errors.New("boom")
	_, err = c.GetOrLoad(context.Background(), "e", func(context.Context) (string, error) { return "", boom })
	testutil.AssertErrorIs(t, err, boom, "error returned")
	_, ok := c.Get("e")
	testutil.AssertFalse(t, ok, "errors are not cached")

	hits, misses := c.Stats()
	testutil.AssertEqual(t, hits, uint64(1), "hits")
	testutil.AssertEqual(t, misses, uint64(3), "misses")
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int](50, 0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (n*100+j)%80)
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	testutil.AssertTrue(t, c.Len() <= 50, "never exceeds capacity")
}
