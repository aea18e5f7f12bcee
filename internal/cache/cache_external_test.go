package cache_test

import (
	"context"
	"testing"

	"marketscout/internal/cache"
	"marketscout/internal/testsupport"
)

func TestNewFallsBackToMemory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c, err := cache.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	if _, ok := c.(*cache.Memory); !ok {
		t.Fatalf("expected memory cache, got %T", c)
	}
}

func TestNewRejectsBadRedisURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Cache.RedisURL = "http://not-redis"
	if _, err := cache.New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected invalid redis url to fail")
	}
}
