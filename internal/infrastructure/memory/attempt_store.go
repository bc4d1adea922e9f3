package memory

import (
	"context"
	"time"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/ports"
)

type attemptEntry struct {
	attempt   domain.BruteForceAttempt
	expiresAt time.Time
}

// AttemptStore keeps brute-force records in process memory. Records expire
// Horizon after their last failure, or when their lockout ends if later.
type AttemptStore struct {
	entries *shardedMap[*attemptEntry]
	nowFunc func() time.Time
}

var _ ports.AttemptStore = (*AttemptStore)(nil)

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		entries: newShardedMap[*attemptEntry](defaultShards),
		nowFunc: time.Now,
	}
}

func (s *AttemptStore) Get(_ context.Context, key string) (*domain.BruteForceAttempt, error) {
	now := s.nowFunc()
	var out *domain.BruteForceAttempt
	s.entries.with(key, func(m map[string]*attemptEntry) {
		e, ok := m[key]
		if !ok {
			return
		}
		if !now.Before(e.expiresAt) {
			delete(m, key)
			return
		}
		cp := e.attempt
		out = &cp
	})
	return out, nil
}

func (s *AttemptStore) RecordFailure(_ context.Context, key string, policy ports.LockoutPolicy, now time.Time) (*domain.BruteForceAttempt, error) {
	var out domain.BruteForceAttempt
	s.entries.with(key, func(m map[string]*attemptEntry) {
		e, ok := m[key]
		if !ok || !now.Before(e.expiresAt) {
			e = &attemptEntry{}
			m[key] = e
		}
		a := &e.attempt
		if a.Blocked && !now.Before(a.BlockedUntil) {
			*a = domain.BruteForceAttempt{}
		}
		a.FailedAttempts++
		a.LastAttempt = now
		if !a.Blocked && a.FailedAttempts >= policy.MaxAttempts {
			a.Blocked = true
			a.BlockedUntil = now.Add(policy.Lockout)
		}
		e.expiresAt = now.Add(policy.Horizon)
		if a.Blocked && a.BlockedUntil.After(e.expiresAt) {
			e.expiresAt = a.BlockedUntil
		}
		out = *a
	})
	return &out, nil
}

func (s *AttemptStore) Reserve(_ context.Context, key string, policy ports.LockoutPolicy, now time.Time) (*domain.BruteForceAttempt, bool, error) {
	var (
		out     domain.BruteForceAttempt
		granted bool
	)
	s.entries.with(key, func(m map[string]*attemptEntry) {
		e, ok := m[key]
		if !ok || !now.Before(e.expiresAt) {
			e = &attemptEntry{}
			m[key] = e
		}
		a := &e.attempt
		if a.Blocked && !now.Before(a.BlockedUntil) {
			*a = domain.BruteForceAttempt{}
		}
		if a.Blocked || a.FailedAttempts >= policy.MaxAttempts {
			out = *a
			return
		}
		granted = true
		a.FailedAttempts++
		a.LastAttempt = now
		if a.FailedAttempts >= policy.MaxAttempts {
			a.Blocked = true
			a.BlockedUntil = now.Add(policy.Lockout)
		}
		e.expiresAt = now.Add(policy.Horizon)
		if a.Blocked && a.BlockedUntil.After(e.expiresAt) {
			e.expiresAt = a.BlockedUntil
		}
		out = *a
	})
	return &out, granted, nil
}

func (s *AttemptStore) Delete(_ context.Context, key string) error {
	s.entries.with(key, func(m map[string]*attemptEntry) {
		delete(m, key)
	})
	return nil
}

// Sweep drops records past their horizon.
func (s *AttemptStore) Sweep(now time.Time) int {
	return s.entries.deleteIf(func(_ string, e *attemptEntry) bool {
		return !now.Before(e.expiresAt)
	})
}
