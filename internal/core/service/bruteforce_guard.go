package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/ports"
)

const (
	defaultMaxAttempts = 5
	defaultLockout     = 15 * time.Minute
	defaultHorizon     = time.Hour
)

// BruteForceGuard locks an identity key out after too many consecutive
// failed logins.
type BruteForceGuard struct {
	store  ports.AttemptStore
	policy ports.LockoutPolicy
	log    zerolog.Logger
	now    func() time.Time
}

// NewBruteForceGuard fills zero policy fields with 5 attempts, a 15 minute
// lockout and a one hour record horizon.
func NewBruteForceGuard(store ports.AttemptStore, policy ports.LockoutPolicy, log zerolog.Logger) *BruteForceGuard {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaultMaxAttempts
	}
	if policy.Lockout <= 0 {
		policy.Lockout = defaultLockout
	}
	if policy.Horizon <= 0 {
		policy.Horizon = defaultHorizon
	}
	return &BruteForceGuard{store: store, policy: policy, log: log, now: time.Now}
}

// IsBlocked reports whether key is inside an active lockout.
func (g *BruteForceGuard) IsBlocked(ctx context.Context, key string) (bool, error) {
	attempt, err := g.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("brute force lookup: %w", err)
	}
	return attempt.IsBlockedAt(g.now()), nil
}

// RecordFailedAttempt counts a failure for key and returns the updated record.
func (g *BruteForceGuard) RecordFailedAttempt(ctx context.Context, key string) (*domain.BruteForceAttempt, error) {
	attempt, err := g.store.RecordFailure(ctx, key, g.policy, g.now())
	if err != nil {
		return nil, fmt.Errorf("brute force record: %w", err)
	}
	if attempt.Blocked && attempt.FailedAttempts == g.policy.MaxAttempts {
		g.logLockout(key, attempt)
	}
	return attempt, nil
}

// ReserveAttempt claims one credential check for key before the password is
// compared. The attempt counts as a failure until RecordSuccessfulAttempt
// clears it, so concurrent guesses cannot outrun the threshold. When the key
// is locked the returned record carries BlockedUntil and the bool is false.
func (g *BruteForceGuard) ReserveAttempt(ctx context.Context, key string) (*domain.BruteForceAttempt, bool, error) {
	attempt, granted, err := g.store.Reserve(ctx, key, g.policy, g.now())
	if err != nil {
		return nil, false, fmt.Errorf("brute force reserve: %w", err)
	}
	if granted && attempt.Blocked && attempt.FailedAttempts == g.policy.MaxAttempts {
		g.logLockout(key, attempt)
	}
	return attempt, granted, nil
}

func (g *BruteForceGuard) logLockout(key string, attempt *domain.BruteForceAttempt) {
	g.log.Warn().
		Str("identity", domain.KeyFingerprint(key)).
		Int("failed_attempts", attempt.FailedAttempts).
		Time("blocked_until", attempt.BlockedUntil).
		Msg("identity locked out")
}

// RecordSuccessfulAttempt clears any failure history for key.
func (g *BruteForceGuard) RecordSuccessfulAttempt(ctx context.Context, key string) error {
	if err := g.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("brute force reset: %w", err)
	}
	return nil
}

// GetLockoutRemaining returns the time left on an active lockout. The bool
// is false when key is not locked.
func (g *BruteForceGuard) GetLockoutRemaining(ctx context.Context, key string) (time.Duration, bool, error) {
	attempt, err := g.store.Get(ctx, key)
	if err != nil {
		return 0, false, fmt.Errorf("brute force lookup: %w", err)
	}
	now := g.now()
	if !attempt.IsBlockedAt(now) {
		return 0, false, nil
	}
	return attempt.BlockedUntil.Sub(now), true, nil
}
