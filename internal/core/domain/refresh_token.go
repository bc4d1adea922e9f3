package domain

import "time"

// RefreshToken is the stored half of an opaque refresh token. The raw value
// only ever leaves the server once; storage keeps TokenHash.
type RefreshToken struct {
	ID        string     `json:"id"`
	TokenHash string     `json:"-"`
	UserID    int64      `json:"user_id"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	Revoked   bool       `json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// IsExpired reports whether the token lifetime has elapsed at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsValid reports whether the token can still be exchanged at now.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
