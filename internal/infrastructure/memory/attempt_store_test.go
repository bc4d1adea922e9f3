package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipper/clipper-api/internal/core/ports"
)

var testPolicy = ports.LockoutPolicy{MaxAttempts: 3, Lockout: 15 * time.Minute, Horizon: time.Hour}

func newTestAttemptStore(now *time.Time) *AttemptStore {
	s := NewAttemptStore()
	s.nowFunc = func() time.Time { return *now }
	return s
}

func TestAttemptStore_BlocksAtThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestAttemptStore(&now)
	ctx := context.Background()

	for i := 1; i < 3; i++ {
		a, err := s.RecordFailure(ctx, "a@b.c|1.2.3.4", testPolicy, now)
		require.NoError(t, err)
		assert.Equal(t, i, a.FailedAttempts)
		assert.False(t, a.Blocked)
	}

	a, err := s.RecordFailure(ctx, "a@b.c|1.2.3.4", testPolicy, now)
	require.NoError(t, err)
	assert.True(t, a.Blocked)
	assert.Equal(t, now.Add(15*time.Minute), a.BlockedUntil)

	got, err := s.Get(ctx, "a@b.c|1.2.3.4")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsBlockedAt(now))
}

func TestAttemptStore_LapsedBlockStartsNewCycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestAttemptStore(&now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = s.RecordFailure(ctx, "k", testPolicy, now)
	}

	now = now.Add(16 * time.Minute)
	a, err := s.RecordFailure(ctx, "k", testPolicy, now)
	require.NoError(t, err)
	assert.Equal(t, 1, a.FailedAttempts)
	assert.False(t, a.Blocked)
}

func TestAttemptStore_ExpiresAfterHorizon(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestAttemptStore(&now)
	ctx := context.Background()

	_, _ = s.RecordFailure(ctx, "k", testPolicy, now)
	now = now.Add(61 * time.Minute)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAttemptStore_DeleteClears(t *testing.T) {
	now := time.Now()
	s := newTestAttemptStore(&now)
	ctx := context.Background()

	_, _ = s.RecordFailure(ctx, "k", testPolicy, now)
	require.NoError(t, s.Delete(ctx, "k"))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAttemptStore_ReserveRefusesWhileBlocked(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestAttemptStore(&now)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		a, ok, err := s.Reserve(ctx, "k", testPolicy, now)
		require.NoError(t, err)
		require.True(t, ok, "attempt %d should be granted", i)
		assert.Equal(t, i, a.FailedAttempts)
	}

	a, ok, err := s.Reserve(ctx, "k", testPolicy, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, a.FailedAttempts)
	assert.Equal(t, now.Add(15*time.Minute), a.BlockedUntil)

	a, ok, err = s.Reserve(ctx, "k", testPolicy, now.Add(15*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, a.FailedAttempts)
	assert.False(t, a.Blocked)
}

func TestAttemptStore_ConcurrentReserveGrantsExactlyMax(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestAttemptStore(&now)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		granted atomic.Int32
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := s.Reserve(ctx, "k", testPolicy, now); err == nil && ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, testPolicy.MaxAttempts, granted.Load())
}
