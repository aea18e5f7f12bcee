package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryExpiresEntries(t *testing.T) {
	now := time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, "search:us:budget", []byte("payload")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, ok, err := m.Get(ctx, "search:us:budget")
	if err != nil || !ok || string(value) != "payload" {
		t.Fatalf("Get = %q %v %v", value, ok, err)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "search:us:budget"); ok {
		t.Fatal("expected entry to expire")
	}
	if m.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped, len=%d", m.Len())
	}
}

func TestMemoryDisabledWithZeroTTL(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	if err := m.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("expected disabled cache to miss")
	}
}
