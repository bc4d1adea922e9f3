package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/ports"
)

// UserRepository is an in-memory credential store. Accounts are few and
// writes rare, so a single RWMutex guards both indexes.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[int64]*domain.User
	byEmail map[string]int64
	nextID  int64
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[int64]*domain.User),
		byEmail: make(map[string]int64),
	}
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	cp.Roles = slices.Clone(u.Roles)
	if u.LastLoginAt != nil {
		at := *u.LastLoginAt
		cp.LastLoginAt = &at
	}
	return &cp
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *UserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := domain.NormalizeEmail(user.Email)
	if _, exists := r.byEmail[email]; exists {
		return nil, domain.ErrDuplicateAccount
	}
	r.nextID++
	stored := cloneUser(user)
	stored.ID = r.nextID
	stored.Email = email
	r.byID[stored.ID] = stored
	r.byEmail[email] = stored.ID
	return cloneUser(stored), nil
}

func (r *UserRepository) EmailExists(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byEmail[domain.NormalizeEmail(email)]
	return ok, nil
}

func (r *UserRepository) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	t := at
	u.LastLoginAt = &t
	u.UpdatedAt = at
	return nil
}
