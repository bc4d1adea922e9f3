package service

import (
	"context"
	"fmt"
	"time"

	"github.com/clipper/clipper-api/internal/core/ports"
)

// EndpointClass groups routes that share a request budget.
type EndpointClass string

const (
	ClassGlobal    EndpointClass = "global"
	ClassSensitive EndpointClass = "sensitive"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RateLimiter enforces fixed-window request caps per client identity and
// endpoint class.
type RateLimiter struct {
	store  ports.CounterStore
	window time.Duration
	limits map[EndpointClass]int
	now    func() time.Time
}

// NewRateLimiter returns a limiter with one shared window length and a limit
// per class. A class with no positive limit is never throttled.
func NewRateLimiter(store ports.CounterStore, window time.Duration, limits map[EndpointClass]int) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	copied := make(map[EndpointClass]int, len(limits))
	for k, v := range limits {
		copied[k] = v
	}
	return &RateLimiter{store: store, window: window, limits: copied, now: time.Now}
}

// Limit returns the configured cap for class.
func (r *RateLimiter) Limit(class EndpointClass) int {
	return r.limits[class]
}

// CheckAndIncrement counts one request from identity against class. Rejected
// requests are not counted.
func (r *RateLimiter) CheckAndIncrement(ctx context.Context, identity string, class EndpointClass) (Decision, error) {
	limit := r.limits[class]
	if limit <= 0 {
		return Decision{Allowed: true}, nil
	}

	now := r.now()
	key := fmt.Sprintf("ratelimit:%s:%s", class, identity)
	wc, err := r.store.IncrementIfBelow(ctx, key, limit, r.window, now)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", class, err)
	}

	d := Decision{
		Allowed:   wc.Allowed,
		Limit:     limit,
		Remaining: max(limit-wc.Count, 0),
		ResetAt:   wc.ResetAt,
	}
	if !wc.Allowed {
		d.RetryAfter = max(wc.ResetAt.Sub(now), time.Second)
	}
	return d, nil
}
