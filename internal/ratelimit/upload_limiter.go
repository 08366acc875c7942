package ratelimit

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

var uploadWindowScript = redisv9.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// UploadLimiter caps document uploads per user per calendar day. A limit of
// -1 disables the cap entirely.
type UploadLimiter struct {
	client *redisv9.Client
	limit  int
	prefix string
}

func NewUploadLimiter(client *redisv9.Client, limit int) *UploadLimiter {
	return &UploadLimiter{
		client: client,
		limit:  limit,
		prefix: "uploads:daily",
	}
}

// Allow consumes one upload slot for the user. It returns false once the
// daily limit is reached. Redis failures fail closed.
func (l *UploadLimiter) Allow(ctx context.Context, userID uint) (bool, error) {
	if l.limit < 0 {
		return true, nil
	}
	if l.limit == 0 {
		return false, nil
	}
	key := l.key(userID, time.Now())
	count, err := uploadWindowScript.Run(ctx, l.client, []string{key}, endOfDayMillis(time.Now())).Int64()
	if err != nil {
		return false, fmt.Errorf("redis upload counter failed: %w", err)
	}
	return count <= int64(l.limit), nil
}

// Remaining reports how many uploads the user has left today. Returns -1
// when the limit is disabled.
func (l *UploadLimiter) Remaining(ctx context.Context, userID uint) (int, error) {
	if l.limit < 0 {
		return -1, nil
	}
	key := l.key(userID, time.Now())
	count, err := l.client.Get(ctx, key).Int64()
	if err == redisv9.Nil {
		return l.limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis upload counter failed: %w", err)
	}
	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the user's counter for today.
func (l *UploadLimiter) Reset(ctx context.Context, userID uint) error {
	if err := l.client.Del(ctx, l.key(userID, time.Now())).Err(); err != nil {
		return fmt.Errorf("redis reset upload counter failed: %w", err)
	}
	return nil
}

// key buckets counters by calendar day so they roll over at midnight.
func (l *UploadLimiter) key(userID uint, now time.Time) string {
	return fmt.Sprintf("%s:%d:%s", l.prefix, userID, now.Format("2006-01-02"))
}

func endOfDayMillis(now time.Time) int64 {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
	return midnight.Sub(now).Milliseconds()
}
