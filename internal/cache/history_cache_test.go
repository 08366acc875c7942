package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"

	"pharmgpt/internal/model"
)

func newTestCache(t *testing.T) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	return NewHistoryCache(client, time.Minute, 5*time.Second), mr
}

func TestHistoryCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	messages := []model.Message{
		{ConversationID: 7, UserID: 1, Role: "user", Content: "what is first-pass metabolism?"},
		{ConversationID: 7, UserID: 1, Role: "assistant", Content: "Hepatic metabolism before systemic circulation."},
	}
	if err := c.SetHistory(ctx, 7, messages); err != nil {
		t.Fatalf("SetHistory() error = %v", err)
	}

	got, ok, err := c.GetHistory(ctx, 7)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if !ok {
		t.Fatal("GetHistory() ok = false, want true")
	}
	if len(got) != 2 || got[0].Content != messages[0].Content || got[1].Role != "assistant" {
		t.Fatalf("GetHistory() = %+v", got)
	}
}

func TestHistoryCacheMiss(t *testing.T) {
	c, _ := newTestCache(t)
	_, ok, err := c.GetHistory(context.Background(), 99)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if ok {
		t.Fatal("GetHistory() ok = true for missing key")
	}
}

func TestHistoryCacheDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	if err := c.SetHistory(ctx, 3, []model.Message{{Role: "user", Content: "hi"}}); err != nil {
		t.Fatalf("SetHistory() error = %v", err)
	}
	if err := c.DeleteHistory(ctx, 3); err != nil {
		t.Fatalf("DeleteHistory() error = %v", err)
	}
	_, ok, err := c.GetHistory(ctx, 3)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if ok {
		t.Fatal("history still cached after delete")
	}
}

func TestHistoryCacheDirtyMarker(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	dirty, err := c.IsDirty(ctx, 5)
	if err != nil {
		t.Fatalf("IsDirty() error = %v", err)
	}
	if dirty {
		t.Fatal("IsDirty() = true before MarkDirty")
	}

	if err := c.MarkDirty(ctx, 5); err != nil {
		t.Fatalf("MarkDirty() error = %v", err)
	}
	dirty, err = c.IsDirty(ctx, 5)
	if err != nil {
		t.Fatalf("IsDirty() error = %v", err)
	}
	if !dirty {
		t.Fatal("IsDirty() = false after MarkDirty")
	}

	// The marker expires on its own.
	mr.FastForward(6 * time.Second)
	dirty, err = c.IsDirty(ctx, 5)
	if err != nil {
		t.Fatalf("IsDirty() error = %v", err)
	}
	if dirty {
		t.Fatal("IsDirty() = true after marker TTL")
	}
}
