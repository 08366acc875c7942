package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int) *UploadLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	return NewUploadLimiter(client, limit)
}

func TestUploadLimiterEnforcesLimit(t *testing.T) {
	l := newTestLimiter(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, 1)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !ok {
			t.Fatalf("upload %d should be allowed", i+1)
		}
	}
	ok, err := l.Allow(ctx, 1)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if ok {
		t.Fatal("third upload should be blocked")
	}
}

func TestUploadLimiterPerUser(t *testing.T) {
	l := newTestLimiter(t, 1)
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, 1); !ok {
		t.Fatal("user 1 first upload blocked")
	}
	if ok, _ := l.Allow(ctx, 2); !ok {
		t.Fatal("user 2 should have an independent counter")
	}
	if ok, _ := l.Allow(ctx, 1); ok {
		t.Fatal("user 1 second upload should be blocked")
	}
}

func TestUploadLimiterUnlimited(t *testing.T) {
	l := newTestLimiter(t, -1)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		ok, err := l.Allow(ctx, 1)
		if err != nil || !ok {
			t.Fatalf("unlimited limiter blocked upload %d: ok=%v err=%v", i, ok, err)
		}
	}
	remaining, err := l.Remaining(ctx, 1)
	if err != nil {
		t.Fatalf("Remaining() error = %v", err)
	}
	if remaining != -1 {
		t.Fatalf("Remaining() = %d, want -1 for unlimited", remaining)
	}
}

func TestUploadLimiterRemainingAndReset(t *testing.T) {
	l := newTestLimiter(t, 3)
	ctx := context.Background()

	remaining, err := l.Remaining(ctx, 1)
	if err != nil {
		t.Fatalf("Remaining() error = %v", err)
	}
	if remaining != 3 {
		t.Fatalf("Remaining() = %d before any upload, want 3", remaining)
	}

	if ok, _ := l.Allow(ctx, 1); !ok {
		t.Fatal("first upload blocked")
	}
	remaining, _ = l.Remaining(ctx, 1)
	if remaining != 2 {
		t.Fatalf("Remaining() = %d after one upload, want 2", remaining)
	}

	if err := l.Reset(ctx, 1); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	remaining, _ = l.Remaining(ctx, 1)
	if remaining != 3 {
		t.Fatalf("Remaining() = %d after reset, want 3", remaining)
	}
}
