package ports

import (
	"context"
	"time"

	"github.com/clipper/clipper-api/internal/core/domain"
)

// LockoutPolicy is the brute-force configuration handed to AttemptStore so the
// store can apply it inside its atomic update.
type LockoutPolicy struct {
	MaxAttempts int
	Lockout     time.Duration
	Horizon     time.Duration
}

// AttemptStore is a TTL key-value store for brute-force counters.
type AttemptStore interface {
	// Get returns nil, nil when no record exists for key.
	Get(ctx context.Context, key string) (*domain.BruteForceAttempt, error)
	// RecordFailure increments the counter for key and applies the lockout
	// policy in a single atomic step. A record whose block has lapsed restarts
	// at one failure.
	RecordFailure(ctx context.Context, key string, policy LockoutPolicy, now time.Time) (*domain.BruteForceAttempt, error)
	// Reserve claims one attempt for key before the credentials are checked.
	// It refuses, leaving the record untouched, while the key is blocked.
	// Otherwise it counts the attempt as a failure and blocks the key once
	// the count reaches MaxAttempts, all in one atomic step. The bool is true
	// when the attempt was granted.
	Reserve(ctx context.Context, key string, policy LockoutPolicy, now time.Time) (*domain.BruteForceAttempt, bool, error)
	Delete(ctx context.Context, key string) error
}

// WindowCount is the outcome of a fixed-window check-and-increment.
type WindowCount struct {
	Allowed bool
	Count   int
	ResetAt time.Time
}

// CounterStore backs the rate limiter. IncrementIfBelow counts the request in
// the window containing now only when the count is still below limit; a
// rejected request leaves the counter untouched.
type CounterStore interface {
	IncrementIfBelow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (WindowCount, error)
}
