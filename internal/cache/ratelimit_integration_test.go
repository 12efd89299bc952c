//go:build integration

package cache

import (
	"context"
	"testing"

	"github.com/rollcall/rollcall/internal/testutil"
)

func TestIntegrationRateLimit_BurstThenReject(t *testing.T) {
	redisURL := testutil.RequireEnv(t, "TEST_REDIS_URL")
	ctx := context.Background()

	c, err := New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	for i := 0; i < 3; i++ {
		res := c.CheckIPRateLimit(ctx, "auth", "203.0.113.7", 0.01, 3)
		if !res.Allowed {
			t.Fatalf("request %d rejected within burst", i+1)
		}
	}

	res := c.CheckIPRateLimit(ctx, "auth", "203.0.113.7", 0.01, 3)
	if res.Allowed {
		t.Fatal("request beyond burst should be rejected")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", res.RetryAfter)
	}

	other := c.CheckIPRateLimit(ctx, "auth", "203.0.113.8", 0.01, 3)
	if !other.Allowed {
		t.Error("a different IP must have its own bucket")
	}
}
