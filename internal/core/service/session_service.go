package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/ports"
)

// DefaultBcryptCost is the work factor for stored password hashes.
const DefaultBcryptCost = 12

// SessionDeps lists everything the session orchestrator needs. All fields
// except Now and BcryptCost are required.
type SessionDeps struct {
	Users  ports.UserRepository
	Tokens *TokenIssuer
	Ledger *RefreshLedger
	Guard  *BruteForceGuard
	Log    zerolog.Logger

	Now        func() time.Time
	BcryptCost int
}

type sessionService struct {
	users  ports.UserRepository
	tokens *TokenIssuer
	ledger *RefreshLedger
	guard  *BruteForceGuard
	log    zerolog.Logger
	now    func() time.Time
	cost   int

	// dummyHash is compared against when the account does not exist so the
	// unknown-user path costs the same as a wrong password.
	dummyHash []byte
}

// NewSessionService wires the orchestrator from deps.
func NewSessionService(deps SessionDeps) (ports.SessionService, error) {
	if deps.Users == nil || deps.Tokens == nil || deps.Ledger == nil || deps.Guard == nil {
		return nil, errors.New("session service: users, tokens, ledger and guard are required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	cost := deps.BcryptCost
	if cost == 0 {
		cost = DefaultBcryptCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("session service: %w", err)
	}

	return &sessionService{
		users:     deps.Users,
		tokens:    deps.Tokens,
		ledger:    deps.Ledger,
		guard:     deps.Guard,
		log:       deps.Log,
		now:       now,
		cost:      cost,
		dummyHash: dummy,
	}, nil
}

// Login authenticates email/password from clientIP and returns a new pair.
func (s *sessionService) Login(ctx context.Context, email, password, clientIP string) (*ports.AuthResult, error) {
	key := domain.IdentityKey(email, clientIP)
	identity := domain.KeyFingerprint(key)

	// 1. Claim an attempt before credentials are looked at. Locked
	// identities are refused here, and the claim counts as a failure until
	// a successful login clears it.
	attempt, granted, err := s.guard.ReserveAttempt(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !granted {
		remaining := max(attempt.BlockedUntil.Sub(s.now()), 0)
		s.log.Warn().Str("identity", identity).Str("ip", clientIP).Dur("remaining", remaining).Msg("login rejected, identity locked")
		return nil, &domain.LockoutError{Remaining: remaining}
	}

	// 2. Resolve the account; absence is not an error yet.
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("login: %w", err)
	}

	// 3. Unknown, inactive and wrong password share one outcome.
	if !s.credentialsMatch(user, password) {
		ev := s.log.Warn().
			Str("identity", identity).
			Str("ip", clientIP).
			Int("failed_attempts", attempt.FailedAttempts)
		if user != nil {
			ev = ev.Int64("user_id", user.ID)
		}
		ev.Msg("login failed")
		return nil, domain.ErrInvalidCredentials
	}

	// 4. Success clears failure history; bookkeeping errors are not fatal.
	if err := s.guard.RecordSuccessfulAttempt(ctx, key); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to reset brute force record")
	}
	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to update last login")
	} else {
		user.LastLoginAt = &now
	}

	res, err := s.issue(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	s.log.Info().Int64("user_id", user.ID).Str("ip", clientIP).Msg("login succeeded")
	return res, nil
}

func (s *sessionService) credentialsMatch(user *domain.User, password string) bool {
	if user == nil || user.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return false
	}
	ok := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
	return ok && user.IsActive
}

// Register creates an account with the User role and signs it in.
func (s *sessionService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	email := domain.NormalizeEmail(in.Email)
	if err := validateRegistration(email, in); err != nil {
		return nil, err
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if exists {
		return nil, domain.ErrDuplicateAccount
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	now := s.now().UTC()
	created, err := s.users.Create(ctx, &domain.User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Roles:        []string{domain.RoleUser},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		// A concurrent registration can pass EmailExists and still lose the
		// unique index race.
		if errors.Is(err, domain.ErrDuplicateAccount) {
			return nil, domain.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	res, err := s.issue(ctx, created)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	s.log.Info().Int64("user_id", created.ID).Msg("account registered")
	return res, nil
}

func validateRegistration(email string, in ports.RegisterInput) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", domain.ErrMalformedRequest)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: email is invalid", domain.ErrMalformedRequest)
	}
	if in.Password != in.ConfirmPassword {
		return fmt.Errorf("%w: passwords do not match", domain.ErrMalformedRequest)
	}
	if err := domain.ValidatePassword(in.Password); err != nil {
		return err
	}
	return domain.ValidateName(in.Name)
}

// RefreshToken rotates refreshValue and returns a new pair. accessToken may
// be empty; when present it must belong to the refresh token's owner and is
// accepted even if expired.
func (s *sessionService) RefreshToken(ctx context.Context, refreshValue, accessToken string) (*ports.AuthResult, error) {
	record, err := s.ledger.GetByValue(ctx, refreshValue)
	if errors.Is(err, domain.ErrRefreshTokenNotFound) {
		return nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	if record.Revoked {
		s.log.Warn().Int64("user_id", record.UserID).Str("token_id", record.ID).Msg("revoked refresh token presented")
		return nil, domain.ErrTokenRevoked
	}
	if record.IsExpired(s.now()) {
		return nil, domain.ErrTokenExpired
	}

	if accessToken != "" {
		p, err := s.tokens.ValidateAndDecode(accessToken, ValidateOptions{IgnoreExpiry: true})
		if err != nil || p.ID != record.UserID {
			return nil, domain.ErrTokenInvalid
		}
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if !user.IsActive {
		return nil, domain.ErrTokenInvalid
	}

	value, _, err := s.ledger.Rotate(ctx, record)
	if err != nil {
		if errors.Is(err, domain.ErrTokenRevoked) {
			return nil, domain.ErrTokenRevoked
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	access, expiresAt, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return newAuthResult(user, access, value, expiresAt), nil
}

// Logout revokes refreshValue. Unknown, expired and already revoked tokens
// are treated as success.
func (s *sessionService) Logout(ctx context.Context, refreshValue string) error {
	record, err := s.ledger.GetByValue(ctx, refreshValue)
	if errors.Is(err, domain.ErrRefreshTokenNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if !record.IsValid(s.now()) {
		return nil
	}
	if _, err := s.ledger.Revoke(ctx, record); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.log.Info().Int64("user_id", record.UserID).Msg("logged out")
	return nil
}

// RevokeAllSessions revokes every live refresh token belonging to userID and
// returns how many were revoked.
func (s *sessionService) RevokeAllSessions(ctx context.Context, userID int64) (int64, error) {
	n, err := s.ledger.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	s.log.Info().Int64("user_id", userID).Int64("revoked", n).Msg("sessions revoked")
	return n, nil
}

func (s *sessionService) issue(ctx context.Context, user *domain.User) (*ports.AuthResult, error) {
	access, expiresAt, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	value, _, err := s.ledger.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return newAuthResult(user, access, value, expiresAt), nil
}

func newAuthResult(user *domain.User, access, refresh string, expiresAt time.Time) *ports.AuthResult {
	return &ports.AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User: ports.UserSummary{
			ID:        user.ID,
			Email:     user.Email,
			Name:      user.Name,
			CreatedAt: user.CreatedAt,
		},
	}
}
