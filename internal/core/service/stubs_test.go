package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Clock
// ---------------------------------------------------------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu        sync.Mutex
	users     map[int64]*domain.User
	nextID    int64
	createErr error
	existsErr error
	lastLogin map[int64]time.Time
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[int64]*domain.User), lastLogin: make(map[int64]time.Time)}
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	cp.Roles = append([]string(nil), u.Roles...)
	return &cp
}

func (r *stubUserRepo) add(u *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	stored := cloneUser(u)
	stored.ID = r.nextID
	r.users[stored.ID] = stored
	return cloneUser(stored)
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, err := r.GetByEmail(ctx, u.Email); err == nil {
		return nil, domain.ErrDuplicateAccount
	}
	return r.add(u), nil
}

func (r *stubUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *stubUserRepo) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLogin[id] = at
	return nil
}

func (r *stubUserRepo) setActive(id int64, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].IsActive = active
}

// ---------------------------------------------------------------------------
// Refresh tokens
// ---------------------------------------------------------------------------

type stubTokenRepo struct {
	mu        sync.Mutex
	byHash    map[string]*domain.RefreshToken
	createErr error
	revokeErr error
	getErr    error
}

func newStubTokenRepo() *stubTokenRepo {
	return &stubTokenRepo{byHash: make(map[string]*domain.RefreshToken)}
}

func (r *stubTokenRepo) Create(_ context.Context, t *domain.RefreshToken) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.byHash[t.TokenHash] = &cp
	return nil
}

func (r *stubTokenRepo) GetByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byHash[hash]
	if !ok {
		return nil, domain.ErrRefreshTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *stubTokenRepo) RevokeIfActive(_ context.Context, hash string, now time.Time) (bool, error) {
	if r.revokeErr != nil {
		return false, r.revokeErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byHash[hash]
	if !ok || !t.IsValid(now) {
		return false, nil
	}
	t.Revoked = true
	t.RevokedAt = &now
	return true, nil
}

func (r *stubTokenRepo) RevokeAllForUser(_ context.Context, userID int64, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.byHash {
		if t.UserID == userID && t.IsValid(now) {
			t.Revoked = true
			n++
		}
	}
	return n, nil
}

func (r *stubTokenRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for h, t := range r.byHash {
		if t.ExpiresAt.Before(cutoff) {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

func (r *stubTokenRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHash)
}

// ---------------------------------------------------------------------------
// Attempt and counter stores
// ---------------------------------------------------------------------------

type stubAttemptStore struct {
	mu      sync.Mutex
	records map[string]*domain.BruteForceAttempt
	err     error
}

func newStubAttemptStore() *stubAttemptStore {
	return &stubAttemptStore{records: make(map[string]*domain.BruteForceAttempt)}
}

func (s *stubAttemptStore) Get(_ context.Context, key string) (*domain.BruteForceAttempt, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *stubAttemptStore) RecordFailure(_ context.Context, key string, p ports.LockoutPolicy, now time.Time) (*domain.BruteForceAttempt, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[key]
	if !ok {
		a = &domain.BruteForceAttempt{}
		s.records[key] = a
	}
	if a.Blocked && !now.Before(a.BlockedUntil) {
		*a = domain.BruteForceAttempt{}
	}
	a.FailedAttempts++
	a.LastAttempt = now
	if !a.Blocked && a.FailedAttempts >= p.MaxAttempts {
		a.Blocked = true
		a.BlockedUntil = now.Add(p.Lockout)
	}
	cp := *a
	return &cp, nil
}

func (s *stubAttemptStore) Reserve(_ context.Context, key string, p ports.LockoutPolicy, now time.Time) (*domain.BruteForceAttempt, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[key]
	if !ok {
		a = &domain.BruteForceAttempt{}
		s.records[key] = a
	}
	if a.Blocked && !now.Before(a.BlockedUntil) {
		*a = domain.BruteForceAttempt{}
	}
	if a.Blocked || a.FailedAttempts >= p.MaxAttempts {
		cp := *a
		return &cp, false, nil
	}
	a.FailedAttempts++
	a.LastAttempt = now
	if a.FailedAttempts >= p.MaxAttempts {
		a.Blocked = true
		a.BlockedUntil = now.Add(p.Lockout)
	}
	cp := *a
	return &cp, true, nil
}

func (s *stubAttemptStore) Delete(_ context.Context, key string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

type stubCounterStore struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newStubCounterStore() *stubCounterStore {
	return &stubCounterStore{counts: make(map[string]int)}
}

func (s *stubCounterStore) IncrementIfBelow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (ports.WindowCount, error) {
	if s.err != nil {
		return ports.WindowCount{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start := now.Truncate(window)
	k := key + "@" + start.String()
	wc := ports.WindowCount{Count: s.counts[k], ResetAt: start.Add(window)}
	if wc.Count >= limit {
		return wc, nil
	}
	s.counts[k]++
	wc.Count++
	wc.Allowed = true
	return wc, nil
}
