package ports

import (
	"context"
	"time"

	"github.com/clipper/clipper-api/internal/core/domain"
)

// UserRepository is the credential store consulted by the session core.
// Lookups by email are case-insensitive.
type UserRepository interface {
	// GetByEmail returns domain.ErrUserNotFound when no account matches.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByID returns domain.ErrUserNotFound when no account matches.
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// Create assigns the numeric ID and returns the stored user. A uniqueness
	// violation on email is reported as domain.ErrDuplicateAccount.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}
