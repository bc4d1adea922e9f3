package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/ports"
)

// expiredRetention keeps expired records around long enough that a late
// client still gets ErrTokenExpired instead of ErrTokenInvalid.
const expiredRetention = 24 * time.Hour

// RefreshValueSource produces opaque refresh token values.
type RefreshValueSource interface {
	GenerateRefreshTokenValue() (string, error)
}

// RefreshLedger tracks issued refresh tokens and enforces single use.
type RefreshLedger struct {
	repo   ports.RefreshTokenRepository
	values RefreshValueSource
	ttl    time.Duration
	now    func() time.Time
}

// NewRefreshLedger returns a ledger issuing tokens that live for ttl.
func NewRefreshLedger(repo ports.RefreshTokenRepository, values RefreshValueSource, ttl time.Duration) *RefreshLedger {
	return &RefreshLedger{
		repo:   repo,
		values: values,
		ttl:    ttl,
		now:    time.Now,
	}
}

// HashRefreshToken is the storage key for a refresh token value.
func HashRefreshToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Create mints a new refresh token for userID and persists its record.
// The raw value is returned once and never stored.
func (l *RefreshLedger) Create(ctx context.Context, userID int64) (string, *domain.RefreshToken, error) {
	value, err := l.values.GenerateRefreshTokenValue()
	if err != nil {
		return "", nil, err
	}

	now := l.now().UTC()
	record := &domain.RefreshToken{
		ID:        uuid.NewString(),
		TokenHash: HashRefreshToken(value),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(l.ttl),
	}
	if err := l.repo.Create(ctx, record); err != nil {
		return "", nil, fmt.Errorf("create refresh token: %w", err)
	}
	return value, record, nil
}

// GetByValue looks up the record for a raw refresh token value.
func (l *RefreshLedger) GetByValue(ctx context.Context, value string) (*domain.RefreshToken, error) {
	if value == "" {
		return nil, domain.ErrRefreshTokenNotFound
	}
	return l.repo.GetByHash(ctx, HashRefreshToken(value))
}

// Revoke marks record revoked. It reports whether this call revoked it;
// false means it was already revoked or expired.
func (l *RefreshLedger) Revoke(ctx context.Context, record *domain.RefreshToken) (bool, error) {
	now := l.now().UTC()
	ok, err := l.repo.RevokeIfActive(ctx, record.TokenHash, now)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	if ok {
		record.Revoked = true
		record.RevokedAt = &now
	}
	return ok, nil
}

// Rotate consumes record and issues its successor. The old token is revoked
// with a compare-and-set first; if another caller won that race the rotation
// fails with ErrTokenRevoked and nothing is issued. A failed insert after a
// successful revoke leaves the client without a valid token.
func (l *RefreshLedger) Rotate(ctx context.Context, record *domain.RefreshToken) (string, *domain.RefreshToken, error) {
	ok, err := l.Revoke(ctx, record)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, domain.ErrTokenRevoked
	}
	return l.Create(ctx, record.UserID)
}

// RevokeAllForUser revokes every active token belonging to userID.
func (l *RefreshLedger) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	n, err := l.repo.RevokeAllForUser(ctx, userID, l.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens for user %d: %w", userID, err)
	}
	return n, nil
}

// PurgeExpired deletes records that expired more than a day ago.
func (l *RefreshLedger) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := l.repo.DeleteExpired(ctx, l.now().UTC().Add(-expiredRetention))
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return n, nil
}
