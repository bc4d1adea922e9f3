package ports

import (
	"context"
	"time"
)

// RegisterInput is the DTO passed from the transport layer to Register.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
}

// UserSummary is the public view of an account returned with every session.
type UserSummary struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthResult is a freshly minted token pair.
type AuthResult struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	User         UserSummary `json:"user"`
}

// SessionService is the façade the HTTP layer talks to.
type SessionService interface {
	Login(ctx context.Context, email, password, clientIP string) (*AuthResult, error)
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	// RefreshToken exchanges a refresh token for a new pair. accessToken is
	// the optional, possibly expired, access token presented alongside it.
	RefreshToken(ctx context.Context, refreshToken, accessToken string) (*AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	// RevokeAllSessions signs userID out everywhere by revoking all of their
	// live refresh tokens. It returns the number revoked.
	RevokeAllSessions(ctx context.Context, userID int64) (int64, error)
}
