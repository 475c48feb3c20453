package cache

import (
	"fmt"
	"strings"
	"testing"
)

func TestKey(t *testing.T) {
	if Key("hello") != "hello" {
		t.Error("short text is its own key")
	}
	long := strings.Repeat("a", 301)
	if got := Key(long); len(got) != 300 {
		t.Errorf("key length = %d, want 300", len(got))
	}
	// Two texts sharing the first 300 characters map to the same key.
	prefix := strings.Repeat("x", 300)
	if Key(prefix+"tail one") != Key(prefix+"different tail") {
		t.Error("shared-prefix texts must collide")
	}
	// Multi-byte characters count as characters, not bytes.
	wide := strings.Repeat("あ", 300)
	if Key(wide+"extra") != wide {
		t.Errorf("rune truncation wrong: got %d bytes", len(Key(wide+"extra")))
	}
}

func TestCache_GetPut(t *testing.T) {
	c := New(10)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
}

func TestCache_HitCounter(t *testing.T) {
	c := New(10)
	c.Put("a", []float32{1})
	if c.Hits() != 0 {
		t.Error("Put must not count as a hit")
	}
	c.Get("missing")
	if c.Hits() != 0 {
		t.Error("miss must not count as a hit")
	}
	c.Get("a")
	c.Get("a")
	if c.Hits() != 2 {
		t.Errorf("Hits = %d, want 2", c.Hits())
	}
}

func TestCache_FIFOEviction(t *testing.T) {
	c := New(2)
	c.Put("k1", []float32{1})
	c.Put("k2", []float32{2})
	c.Put("k3", []float32{3}) // evicts k1 only

	if _, ok := c.Get("k1"); ok {
		t.Error("k1 should have been evicted")
	}
	if v, ok := c.Get("k2"); !ok || v[0] != 2 {
		t.Error("k2 should remain")
	}
	if v, ok := c.Get("k3"); !ok || v[0] != 3 {
		t.Error("k3 should be present")
	}
	if c.Size() != 2 {
		t.Errorf("Size = %d, want 2", c.Size())
	}
}

func TestCache_OverwriteKeepsEvictionOrder(t *testing.T) {
	c := New(2)
	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	// Overwriting "a" must not refresh its position: it is still the oldest.
	c.Put("a", []float32{10})
	c.Put("c", []float32{3})

	if _, ok := c.Get("a"); ok {
		t.Error("a should have been evicted despite the recent overwrite")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b should remain")
	}
	if v, _ := c.Get("c"); v[0] != 3 {
		t.Error("c should be present")
	}
}

func TestCache_LookupDoesNotRefresh(t *testing.T) {
	c := New(2)
	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	c.Get("a") // no recency effect
	c.Put("c", []float32{3})

	if _, ok := c.Get("a"); ok {
		t.Error("a should have been evicted; Get must not refresh order")
	}
}

func TestCache_CapacityInvariant(t *testing.T) {
	const capacity = 50
	const extra = 20
	c := New(capacity)
	for i := 0; i < capacity+extra; i++ {
		c.Put(fmt.Sprintf("key-%03d", i), []float32{float32(i)})
		if c.Size() > capacity {
			t.Fatalf("size %d exceeds capacity %d after insert %d", c.Size(), capacity, i)
		}
	}
	// Exactly the last `capacity` distinct keys survive, in insertion order.
	keys := c.Keys()
	if len(keys) != capacity {
		t.Fatalf("len(keys) = %d, want %d", len(keys), capacity)
	}
	for i, key := range keys {
		want := fmt.Sprintf("key-%03d", extra+i)
		if key != want {
			t.Errorf("keys[%d] = %q, want %q", i, key, want)
		}
	}
}

func TestCache_Clear(t *testing.T) {
	c := New(10)
	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	c.Get("a")

	if n := c.Clear(); n != 2 {
		t.Errorf("Clear = %d, want 2", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size after Clear = %d, want 0", c.Size())
	}
	if c.Hits() != 0 {
		t.Error("hit counter should reset on Clear")
	}
	if _, ok := c.Get("a"); ok {
		t.Error("cleared key should be a miss")
	}
}

func TestCache_DefaultCapacity(t *testing.T) {
	if New(0).Capacity() != DefaultCapacity {
		t.Error("zero capacity should fall back to default")
	}
	if New(-1).Capacity() != DefaultCapacity {
		t.Error("negative capacity should fall back to default")
	}
}

func BenchmarkCachePut(b *testing.B) {
	c := New(DefaultCapacity)
	vec := make([]float32, 384)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Put(fmt.Sprintf("key-%d", i), vec)
	}
}

func BenchmarkCacheGet(b *testing.B) {
	c := New(DefaultCapacity)
	c.Put("key", make([]float32, 384))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("key")
	}
}
