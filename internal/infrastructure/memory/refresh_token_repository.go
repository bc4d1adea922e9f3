package memory

import (
	"context"
	"time"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/ports"
)

// RefreshTokenRepository stores refresh token records keyed by hash.
type RefreshTokenRepository struct {
	tokens *shardedMap[*domain.RefreshToken]
}

var _ ports.RefreshTokenRepository = (*RefreshTokenRepository)(nil)

func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{tokens: newShardedMap[*domain.RefreshToken](defaultShards)}
}

func cloneToken(t *domain.RefreshToken) *domain.RefreshToken {
	cp := *t
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		cp.RevokedAt = &at
	}
	return &cp
}

func (r *RefreshTokenRepository) Create(_ context.Context, token *domain.RefreshToken) error {
	r.tokens.with(token.TokenHash, func(m map[string]*domain.RefreshToken) {
		m[token.TokenHash] = cloneToken(token)
	})
	return nil
}

func (r *RefreshTokenRepository) GetByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	var out *domain.RefreshToken
	r.tokens.with(hash, func(m map[string]*domain.RefreshToken) {
		if t, ok := m[hash]; ok {
			out = cloneToken(t)
		}
	})
	if out == nil {
		return nil, domain.ErrRefreshTokenNotFound
	}
	return out, nil
}

func (r *RefreshTokenRepository) RevokeIfActive(_ context.Context, hash string, now time.Time) (bool, error) {
	revoked := false
	r.tokens.with(hash, func(m map[string]*domain.RefreshToken) {
		t, ok := m[hash]
		if !ok || !t.IsValid(now) {
			return
		}
		t.Revoked = true
		at := now
		t.RevokedAt = &at
		revoked = true
	})
	return revoked, nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(_ context.Context, userID int64, now time.Time) (int64, error) {
	var n int64
	for _, s := range r.tokens.shards {
		s.mu.Lock()
		for _, t := range s.m {
			if t.UserID == userID && t.IsValid(now) {
				t.Revoked = true
				at := now
				t.RevokedAt = &at
				n++
			}
		}
		s.mu.Unlock()
	}
	return n, nil
}

func (r *RefreshTokenRepository) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	n := r.tokens.deleteIf(func(_ string, t *domain.RefreshToken) bool {
		return t.ExpiresAt.Before(cutoff)
	})
	return int64(n), nil
}
