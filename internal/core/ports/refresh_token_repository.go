package ports

import (
	"context"
	"time"

	"github.com/clipper/clipper-api/internal/core/domain"
)

// RefreshTokenRepository persists refresh token records keyed by the SHA-256
// hash of the opaque value.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	// GetByHash returns domain.ErrRefreshTokenNotFound when absent.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// RevokeIfActive atomically flips revoked to true only when the record is
	// currently unrevoked and unexpired at now. It reports whether this call
	// performed the transition.
	RevokeIfActive(ctx context.Context, tokenHash string, now time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID int64, now time.Time) (int64, error)
	// DeleteExpired removes records whose expiry is before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
