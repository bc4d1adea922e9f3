package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clipper/clipper-api/internal/core/domain"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func testTokenConfig() TokenConfig {
	return TokenConfig{
		SigningKey: testSigningKey,
		Issuer:     "clipper-api",
		Audience:   "clipper-clients",
		AccessTTL:  60 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

func newTestIssuer(t *testing.T, clock *fakeClock) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(testTokenConfig())
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	if clock != nil {
		issuer.now = clock.Now
	}
	return issuer
}

func testUser() *domain.User {
	return &domain.User{ID: 42, Email: "ana@example.com", Name: "Ana", Roles: []string{domain.RoleUser}, IsActive: true}
}

func tokenKind(t *testing.T, err error) domain.TokenErrorKind {
	t.Helper()
	var te *domain.TokenError
	if !errors.As(err, &te) {
		t.Fatalf("expected *domain.TokenError, got %T (%v)", err, err)
	}
	return te.Kind
}

func TestNewTokenIssuer_RejectsShortKey(t *testing.T) {
	cfg := testTokenConfig()
	cfg.SigningKey = "too-short"
	if _, err := NewTokenIssuer(cfg); !errors.Is(err, ErrSigningKeyTooShort) {
		t.Fatalf("expected ErrSigningKeyTooShort, got %v", err)
	}
}

func TestNewTokenIssuer_RequiresIssuerAndLifetimes(t *testing.T) {
	cfg := testTokenConfig()
	cfg.Audience = ""
	if _, err := NewTokenIssuer(cfg); err == nil {
		t.Fatalf("expected error for empty audience")
	}
	cfg = testTokenConfig()
	cfg.AccessTTL = 0
	if _, err := NewTokenIssuer(cfg); err == nil {
		t.Fatalf("expected error for zero access ttl")
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestIssuer(t, clock)

	token, expiresAt, err := issuer.GenerateAccessToken(testUser())
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if want := clock.Now().Add(time.Hour); !expiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, expiresAt)
	}

	p, err := issuer.ValidateAndDecode(token, ValidateOptions{})
	if err != nil {
		t.Fatalf("ValidateAndDecode: %v", err)
	}
	if p.ID != 42 || p.Email != "ana@example.com" || p.Name != "Ana" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if !p.HasRole("user") {
		t.Fatalf("expected role User, got %v", p.Roles)
	}
}

func TestTokenIssuer_ExpiredToken(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestIssuer(t, clock)
	token, _, _ := issuer.GenerateAccessToken(testUser())

	clock.Advance(61 * time.Minute)

	_, err := issuer.ValidateAndDecode(token, ValidateOptions{})
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expired token must not match ErrTokenInvalid")
	}

	p, err := issuer.ValidateAndDecode(token, ValidateOptions{IgnoreExpiry: true})
	if err != nil {
		t.Fatalf("IgnoreExpiry should accept an expired token: %v", err)
	}
	if p.ID != 42 {
		t.Fatalf("unexpected id %d", p.ID)
	}
}

func TestTokenIssuer_ForeignIssuerAndAudience(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestIssuer(t, clock)

	other := testTokenConfig()
	other.Issuer = "someone-else"
	foreign, _ := NewTokenIssuer(other)
	foreign.now = clock.Now
	token, _, _ := foreign.GenerateAccessToken(testUser())

	for _, opts := range []ValidateOptions{{}, {IgnoreExpiry: true}} {
		_, err := issuer.ValidateAndDecode(token, opts)
		if kind := tokenKind(t, err); kind != domain.TokenClaimsMismatch {
			t.Fatalf("opts %+v: expected claims mismatch, got %s", opts, kind)
		}
		if !errors.Is(err, domain.ErrTokenInvalid) {
			t.Fatalf("mismatch must match ErrTokenInvalid")
		}
	}

	other = testTokenConfig()
	other.Audience = "another-app"
	foreign, _ = NewTokenIssuer(other)
	foreign.now = clock.Now
	token, _, _ = foreign.GenerateAccessToken(testUser())

	clock.Advance(2 * time.Hour)
	_, err := issuer.ValidateAndDecode(token, ValidateOptions{IgnoreExpiry: true})
	if kind := tokenKind(t, err); kind != domain.TokenClaimsMismatch {
		t.Fatalf("expected claims mismatch for foreign audience, got %s", kind)
	}
}

func TestTokenIssuer_TamperedSignature(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	token, _, _ := issuer.GenerateAccessToken(testUser())

	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	for _, opts := range []ValidateOptions{{}, {IgnoreExpiry: true}} {
		_, err := issuer.ValidateAndDecode(tampered, opts)
		if kind := tokenKind(t, err); kind != domain.TokenBadSignature {
			t.Fatalf("expected signature failure, got %s", kind)
		}
	}
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	claims := jwt.MapClaims{
		"user_id": 1,
		"iss":     "clipper-api",
		"aud":     "clipper-clients",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSigningKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = issuer.ValidateAndDecode(signed, ValidateOptions{})
	if kind := tokenKind(t, err); kind != domain.TokenBadSignature {
		t.Fatalf("expected signature failure for HS512, got %s", kind)
	}
}

func TestTokenIssuer_Malformed(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := issuer.ValidateAndDecode(tok, ValidateOptions{})
		if !errors.Is(err, domain.ErrTokenInvalid) {
			t.Fatalf("%q: expected ErrTokenInvalid, got %v", tok, err)
		}
	}
}

func TestTokenIssuer_RefreshValues(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		v, err := issuer.GenerateRefreshTokenValue()
		if err != nil {
			t.Fatalf("GenerateRefreshTokenValue: %v", err)
		}
		if len(v) != 43 {
			t.Fatalf("expected 43 base64url chars for 32 bytes, got %d", len(v))
		}
		if seen[v] {
			t.Fatalf("duplicate refresh value")
		}
		seen[v] = true
	}
}
