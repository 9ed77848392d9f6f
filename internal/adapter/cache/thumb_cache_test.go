package cache

import (
	"testing"
	"time"
)

func TestThumbCache_GetPut(t *testing.T) {
	c := NewThumbCache(4, time.Minute)
	mod := time.Unix(1700000000, 0)

	if _, ok := c.Get("a.png", mod, 10); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("a.png", mod, 10, []byte("thumb"))
	data, ok := c.Get("a.png", mod, 10)
	if !ok {
		t.Fatal("expected hit")
	}
	if string(data) != "thumb" {
		t.Errorf("expected thumb, got %q", data)
	}

	if _, ok := c.Get("a.png", mod.Add(time.Second), 10); ok {
		t.Error("expected miss after modification time changed")
	}
	if _, ok := c.Get("a.png", mod, 11); ok {
		t.Error("expected miss after size changed")
	}
}

func TestThumbCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewThumbCache(2, time.Minute)
	mod := time.Unix(1700000000, 0)

	c.Put("a", mod, 1, []byte("a"))
	c.Put("b", mod, 1, []byte("b"))
	c.Get("a", mod, 1)
	c.Put("c", mod, 1, []byte("c"))

	if c.Size() != 2 {
		t.Errorf("expected size 2, got %d", c.Size())
	}
	if _, ok := c.Get("b", mod, 1); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a", mod, 1); !ok {
		t.Error("expected a to survive")
	}
}

func TestThumbCache_TTL(t *testing.T) {
	c := NewThumbCache(2, time.Millisecond)
	mod := time.Unix(1700000000, 0)
	c.Put("a", mod, 1, []byte("a"))
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("a", mod, 1); ok {
		t.Error("expected expired entry to miss")
	}
	if c.Size() != 0 {
		t.Errorf("expected expired entry to be dropped, size %d", c.Size())
	}
}

func TestThumbCache_Invalidate(t *testing.T) {
	c := NewThumbCache(8, time.Minute)
	mod := time.Unix(1700000000, 0)
	c.Put("a", mod, 1, []byte("a1"))
	c.Put("a", mod.Add(time.Hour), 2, []byte("a2"))
	c.Put("b", mod, 1, []byte("b"))

	c.InvalidateName("a")
	if c.Size() != 1 {
		t.Errorf("expected 1 entry after InvalidateName, got %d", c.Size())
	}
	if _, ok := c.Get("b", mod, 1); !ok {
		t.Error("expected b to survive")
	}

	c.Invalidate()
	if c.Size() != 0 {
		t.Errorf("expected empty cache, got %d", c.Size())
	}
}
