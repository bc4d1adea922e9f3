package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clipper/clipper-api/internal/core/domain"
)

const collectionRefreshTokens = "refresh_tokens"

type RefreshTokenRepository struct {
	col *mongo.Collection
}

func NewRefreshTokenRepository(db *mongo.Database) *RefreshTokenRepository {
	return &RefreshTokenRepository{col: db.Collection(collectionRefreshTokens)}
}

type refreshTokenDocument struct {
	ID        string     `bson:"_id"`
	TokenHash string     `bson:"token_hash"`
	UserID    int64      `bson:"user_id"`
	IssuedAt  time.Time  `bson:"issued_at"`
	ExpiresAt time.Time  `bson:"expires_at"`
	Revoked   bool       `bson:"revoked"`
	RevokedAt *time.Time `bson:"revoked_at,omitempty"`
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, refreshTokenDocument{
		ID:        t.ID,
		TokenHash: t.TokenHash,
		UserID:    t.UserID,
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
		Revoked:   t.Revoked,
		RevokedAt: t.RevokedAt,
	})
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc refreshTokenDocument
	if err := r.col.FindOne(ctx, bson.M{"token_hash": hash}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &domain.RefreshToken{
		ID:        doc.ID,
		TokenHash: doc.TokenHash,
		UserID:    doc.UserID,
		IssuedAt:  doc.IssuedAt.UTC(),
		ExpiresAt: doc.ExpiresAt.UTC(),
		Revoked:   doc.Revoked,
		RevokedAt: doc.RevokedAt,
	}, nil
}

// RevokeIfActive is a single conditional update: only one of several
// concurrent callers can match the unrevoked document.
func (r *RefreshTokenRepository) RevokeIfActive(ctx context.Context, hash string, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"token_hash": hash,
			"revoked":    false,
			"expires_at": bson.M{"$gt": now},
		},
		bson.M{"$set": bson.M{"revoked": true, "revoked_at": now}},
	)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateMany(ctx,
		bson.M{
			"user_id":    userID,
			"revoked":    false,
			"expires_at": bson.M{"$gt": now},
		},
		bson.M{"$set": bson.M{"revoked": true, "revoked_at": now}},
	)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := r.col.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates the unique hash index and the per-user index.
func (r *RefreshTokenRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "revoked", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
