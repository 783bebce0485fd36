package cache

import (
	"testing"
	"time"
)

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	var evicted []string
	c.OnEvict(func(key string, _ int) { evicted = append(evicted, key) })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // b becomes least recently used
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("unexpected evictions %v", evicted)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestIdleExpiry(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	now = now.Add(50 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry should still be live")
	}
	now = now.Add(50 * time.Second) // 100s after Set, 50s after last Get
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("Get must refresh the idle timer")
	}
	now = now.Add(2 * time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 expired entry, got %d", n)
	}
}

func TestDeleteSkipsEvictHook(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	called := false
	c.OnEvict(func(string, int) { called = true })
	c.Set("a", 1)
	c.Delete("a")
	if called || c.Size() != 0 {
		t.Fatalf("delete must remove without calling the hook")
	}
}

func TestManagerSweep(t *testing.T) {
	c := NewLRUCache[int](10, -time.Second) // every entry already expired
	c.Set("a", 1)
	m := NewManager()
	m.Register(c)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected 1 purged entry, got %d", n)
	}
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
