package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clipper/clipper-api/internal/core/ports"
)

// incrementIfBelow counts a hit only while the window is under its limit.
// KEYS[1] window key, ARGV[1] limit, ARGV[2] ms until the window closes.
// Returns {allowed, count}.
var incrementIfBelow = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= tonumber(ARGV[1]) then
  return {0, count}
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, count}
`)

// CounterStore is a Redis fixed-window counter shared by every API instance.
// Windows are aligned on now.Truncate(window) and each window gets its own
// key, so expiry never races with a reset.
type CounterStore struct {
	client redis.Scripter
}

var _ ports.CounterStore = (*CounterStore)(nil)

func NewCounterStore(client redis.Scripter) *CounterStore {
	return &CounterStore{client: client}
}

func (s *CounterStore) IncrementIfBelow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (ports.WindowCount, error) {
	start := now.Truncate(window)
	end := start.Add(window)
	windowKey := fmt.Sprintf("%s:%d", key, start.Unix())

	ttl := max(end.Sub(now).Milliseconds(), 1)

	res, err := incrementIfBelow.Run(ctx, s.client, []string{windowKey}, limit, ttl).Int64Slice()
	if err != nil {
		return ports.WindowCount{}, fmt.Errorf("rate limit counter: %w", err)
	}
	return ports.WindowCount{
		Allowed: res[0] == 1,
		Count:   int(res[1]),
		ResetAt: end,
	}, nil
}
