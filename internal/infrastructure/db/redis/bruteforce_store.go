package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/ports"
)

const attemptKeyPrefix = "bruteforce:"

// recordFailure applies one failed login to a hash record.
// KEYS[1] record key.
// ARGV[1] now (unix ms), ARGV[2] max attempts, ARGV[3] lockout ms, ARGV[4] horizon ms.
// Returns {failed, blocked, blocked_until_ms}.
var recordFailure = redis.NewScript(`
local now = tonumber(ARGV[1])
local failed = tonumber(redis.call('HGET', KEYS[1], 'failed') or '0')
local blocked = tonumber(redis.call('HGET', KEYS[1], 'blocked') or '0')
local until_ms = tonumber(redis.call('HGET', KEYS[1], 'until') or '0')
if blocked == 1 and until_ms <= now then
  failed = 0
  blocked = 0
  until_ms = 0
end
failed = failed + 1
if blocked == 0 and failed >= tonumber(ARGV[2]) then
  blocked = 1
  until_ms = now + tonumber(ARGV[3])
end
redis.call('HSET', KEYS[1], 'failed', failed, 'last', now, 'blocked', blocked, 'until', until_ms)
local ttl = tonumber(ARGV[4])
if blocked == 1 and until_ms - now > ttl then
  ttl = until_ms - now
end
redis.call('PEXPIRE', KEYS[1], ttl)
return {failed, blocked, until_ms}
`)

// reserveAttempt claims one login attempt ahead of the password check.
// KEYS[1] record key.
// ARGV as for recordFailure.
// Returns {granted, failed, blocked, blocked_until_ms, last_ms}. A refused
// attempt leaves the record and its TTL untouched.
var reserveAttempt = redis.NewScript(`
local now = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local failed = tonumber(redis.call('HGET', KEYS[1], 'failed') or '0')
local blocked = tonumber(redis.call('HGET', KEYS[1], 'blocked') or '0')
local until_ms = tonumber(redis.call('HGET', KEYS[1], 'until') or '0')
local last = tonumber(redis.call('HGET', KEYS[1], 'last') or '0')
if blocked == 1 and until_ms <= now then
  failed = 0
  blocked = 0
  until_ms = 0
end
if blocked == 1 or failed >= max then
  return {0, failed, blocked, until_ms, last}
end
failed = failed + 1
last = now
if failed >= max then
  blocked = 1
  until_ms = now + tonumber(ARGV[3])
end
redis.call('HSET', KEYS[1], 'failed', failed, 'last', now, 'blocked', blocked, 'until', until_ms)
local ttl = tonumber(ARGV[4])
if blocked == 1 and until_ms - now > ttl then
  ttl = until_ms - now
end
redis.call('PEXPIRE', KEYS[1], ttl)
return {1, failed, blocked, until_ms, last}
`)

// AttemptStore keeps brute-force records as Redis hashes that expire after
// the configured horizon.
type AttemptStore struct {
	client redis.Cmdable
}

var _ ports.AttemptStore = (*AttemptStore)(nil)

func NewAttemptStore(client redis.Cmdable) *AttemptStore {
	return &AttemptStore{client: client}
}

func (s *AttemptStore) Get(ctx context.Context, key string) (*domain.BruteForceAttempt, error) {
	vals, err := s.client.HGetAll(ctx, attemptKeyPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("get attempts: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	failed, err1 := strconv.Atoi(vals["failed"])
	last, err2 := strconv.ParseInt(vals["last"], 10, 64)
	until, err3 := strconv.ParseInt(vals["until"], 10, 64)
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("decode attempts for %q: %w", key, err)
	}
	return &domain.BruteForceAttempt{
		FailedAttempts: failed,
		LastAttempt:    time.UnixMilli(last).UTC(),
		Blocked:        vals["blocked"] == "1",
		BlockedUntil:   time.UnixMilli(until).UTC(),
	}, nil
}

func (s *AttemptStore) RecordFailure(ctx context.Context, key string, policy ports.LockoutPolicy, now time.Time) (*domain.BruteForceAttempt, error) {
	res, err := recordFailure.Run(ctx, s.client, []string{attemptKeyPrefix + key},
		now.UnixMilli(),
		policy.MaxAttempts,
		policy.Lockout.Milliseconds(),
		policy.Horizon.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("record failure: %w", err)
	}
	return &domain.BruteForceAttempt{
		FailedAttempts: int(res[0]),
		LastAttempt:    time.UnixMilli(now.UnixMilli()).UTC(),
		Blocked:        res[1] == 1,
		BlockedUntil:   time.UnixMilli(res[2]).UTC(),
	}, nil
}

func (s *AttemptStore) Reserve(ctx context.Context, key string, policy ports.LockoutPolicy, now time.Time) (*domain.BruteForceAttempt, bool, error) {
	res, err := reserveAttempt.Run(ctx, s.client, []string{attemptKeyPrefix + key},
		now.UnixMilli(),
		policy.MaxAttempts,
		policy.Lockout.Milliseconds(),
		policy.Horizon.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, false, fmt.Errorf("reserve attempt: %w", err)
	}
	if len(res) != 5 {
		return nil, false, fmt.Errorf("reserve attempt: unexpected reply length %d", len(res))
	}
	return &domain.BruteForceAttempt{
		FailedAttempts: int(res[1]),
		LastAttempt:    time.UnixMilli(res[4]).UTC(),
		Blocked:        res[2] == 1,
		BlockedUntil:   time.UnixMilli(res[3]).UTC(),
	}, res[0] == 1, nil
}

func (s *AttemptStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, attemptKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("delete attempts: %w", err)
	}
	return nil
}
