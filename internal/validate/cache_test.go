package validate

import (
	"testing"
	"time"
)

func TestCacheGetPut(t *testing.T) {
	c := NewCache(time.Hour)
	key := "job/doi:10.1000/x"

	if _, ok := c.Get(key); ok {
		t.Fatal("empty cache should miss")
	}

	c.Put(key, &Result{Status: StatusConfirmed})
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("cache should hit after Put")
	}
	if got.Status != StatusConfirmed {
		t.Errorf("Status = %q, want %q", got.Status, StatusConfirmed)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(time.Hour)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Put("k", &Result{Status: StatusNotFound})

	c.now = func() time.Time { return base.Add(59 * time.Minute) }
	if _, ok := c.Get("k"); !ok {
		t.Error("entry should still be live before the TTL")
	}

	c.now = func() time.Time { return base.Add(time.Hour) }
	if _, ok := c.Get("k"); ok {
		t.Error("entry should expire at the TTL")
	}
}

func TestCacheIgnoresNonDefinitive(t *testing.T) {
	c := NewCache(time.Hour)

	c.Put("k", nil)
	c.Put("k", &Result{Status: ""})
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0: only definitive outcomes are cacheable", c.Len())
	}

	c.Put("k", &Result{Status: StatusNotFound})
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCacheCopiesResults(t *testing.T) {
	c := NewCache(time.Hour)
	r := &Result{Status: StatusConfirmed, Reason: "original"}
	c.Put("k", r)
	r.Reason = "mutated"

	got, _ := c.Get("k")
	if got.Reason != "original" {
		t.Errorf("cached result shares memory with caller's value: %q", got.Reason)
	}
}

func TestCacheZeroTTLDefaults(t *testing.T) {
	c := NewCache(0)
	if c.ttl != DefaultCacheTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultCacheTTL)
	}
}
