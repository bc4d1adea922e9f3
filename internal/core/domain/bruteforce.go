package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// BruteForceAttempt tracks consecutive failed logins for one identity key
// (email|ip, or ip alone).
type BruteForceAttempt struct {
	FailedAttempts int       `json:"failed_attempts"`
	LastAttempt    time.Time `json:"last_attempt"`
	Blocked        bool      `json:"blocked"`
	BlockedUntil   time.Time `json:"blocked_until"`
}

// IsBlockedAt reports whether the lockout is still in force at now.
func (a *BruteForceAttempt) IsBlockedAt(now time.Time) bool {
	return a != nil && a.Blocked && now.Before(a.BlockedUntil)
}

// IdentityKey builds the brute-force key for a login attempt. An empty email
// falls back to the client address alone.
func IdentityKey(email, clientIP string) string {
	email = NormalizeEmail(email)
	if email == "" {
		return clientIP
	}
	return email + "|" + clientIP
}

// KeyFingerprint returns a short stable digest of an identity key for log
// lines, so submitted emails never reach the logs.
func KeyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}
