package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clipper/clipper-api/internal/core/domain"
)

const (
	minSigningKeyLen  = 32
	refreshTokenBytes = 32
)

// ErrSigningKeyTooShort is returned by NewTokenIssuer for keys under 32 bytes.
var ErrSigningKeyTooShort = fmt.Errorf("token issuer: signing key must be at least %d bytes", minSigningKeyLen)

// TokenConfig holds the signing material and lifetimes for issued tokens.
type TokenConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ValidateOptions tunes ValidateAndDecode. IgnoreExpiry skips lifetime checks
// only; signature, issuer and audience are always verified.
type ValidateOptions struct {
	IgnoreExpiry bool
}

type accessClaims struct {
	UserID int64    `json:"user_id"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 access tokens and mints opaque refresh values.
type TokenIssuer struct {
	cfg     TokenConfig
	key     []byte
	strict  *jwt.Parser
	lenient *jwt.Parser
	now     func() time.Time
}

// NewTokenIssuer validates cfg and returns a ready issuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.SigningKey) < minSigningKeyLen {
		return nil, ErrSigningKeyTooShort
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("token issuer: issuer and audience are required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token issuer: token lifetimes must be positive")
	}

	t := &TokenIssuer{
		cfg: cfg,
		key: []byte(cfg.SigningKey),
		now: time.Now,
	}
	methods := jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})
	clock := jwt.WithTimeFunc(func() time.Time { return t.now() })
	t.strict = jwt.NewParser(
		methods,
		clock,
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	t.lenient = jwt.NewParser(methods, jwt.WithoutClaimsValidation())
	return t, nil
}

// AccessTTL returns the configured access token lifetime.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.cfg.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.cfg.RefreshTTL }

// GenerateAccessToken signs a token for user and returns it with its expiry.
func (t *TokenIssuer) GenerateAccessToken(user *domain.User) (string, time.Time, error) {
	now := t.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(t.cfg.AccessTTL)

	claims := accessClaims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Roles:  user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    t.cfg.Issuer,
			Audience:  jwt.ClaimStrings{t.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// GenerateRefreshTokenValue returns 32 bytes of crypto/rand output, base64url
// encoded without padding.
func (t *TokenIssuer) GenerateRefreshTokenValue() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidateAndDecode verifies token and rebuilds the principal it carries.
// Failures are *domain.TokenError values.
func (t *TokenIssuer) ValidateAndDecode(token string, opts ValidateOptions) (*domain.Principal, error) {
	if token == "" {
		return nil, &domain.TokenError{Kind: domain.TokenMalformed, Err: errors.New("empty token")}
	}

	claims := &accessClaims{}
	parser := t.strict
	if opts.IgnoreExpiry {
		parser = t.lenient
	}

	if _, err := parser.ParseWithClaims(token, claims, t.keyFunc); err != nil {
		return nil, classifyJWTError(err)
	}

	if opts.IgnoreExpiry {
		if claims.Issuer != t.cfg.Issuer {
			return nil, &domain.TokenError{Kind: domain.TokenClaimsMismatch, Err: jwt.ErrTokenInvalidIssuer}
		}
		if !slices.Contains(claims.Audience, t.cfg.Audience) {
			return nil, &domain.TokenError{Kind: domain.TokenClaimsMismatch, Err: jwt.ErrTokenInvalidAudience}
		}
	}

	id := claims.UserID
	if id == 0 {
		parsed, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil || parsed == 0 {
			return nil, &domain.TokenError{Kind: domain.TokenMalformed, Err: errors.New("missing user id claim")}
		}
		id = parsed
	}

	return &domain.Principal{
		ID:    id,
		Email: claims.Email,
		Name:  claims.Name,
		Roles: claims.Roles,
	}, nil
}

func (t *TokenIssuer) keyFunc(*jwt.Token) (any, error) {
	return t.key, nil
}

// classifyJWTError maps jwt/v5 parse errors onto token error kinds. Mismatch
// is checked before lifetime so an expired token from a foreign issuer is
// still reported as a mismatch.
func classifyJWTError(err error) *domain.TokenError {
	kind := domain.TokenMalformed
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		kind = domain.TokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		kind = domain.TokenBadSignature
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		kind = domain.TokenClaimsMismatch
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		kind = domain.TokenLifetime
	}
	return &domain.TokenError{Kind: kind, Err: err}
}
