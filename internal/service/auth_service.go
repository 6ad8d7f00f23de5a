package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/user-directory/internal/auth"
	"github.com/spec-kit/user-directory/internal/domain"
	"github.com/spec-kit/user-directory/internal/events"
	"github.com/spec-kit/user-directory/internal/repository"
	apperrors "github.com/spec-kit/user-directory/pkg/util/errorutil"
)

// dummyPassword is hashed once and compared against when a login names an
// unknown email, so both failure paths spend the same bcrypt work.
const dummyPassword = "Dummy-password-1!"

// RegisterInput carries a validated registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// ProfileUpdate carries a validated profile change. NewPassword requires
// CurrentPassword.
type ProfileUpdate struct {
	Patch           domain.AccountPatch
	CurrentPassword string
	NewPassword     string
}

// AuthService coordinates registration, login and token lifecycle flows.
type AuthService struct {
	accounts repository.AccountRepository
	hasher   auth.PasswordHasher
	tokens   *auth.TokenManager
	revoker  auth.Revoker
	events   events.Dispatcher
	logger   *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Accounts   repository.AccountRepository
	Hasher     auth.PasswordHasher
	Tokens     *auth.TokenManager
	Revoker    auth.Revoker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	s := &AuthService{
		accounts: deps.Accounts,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		revoker:  deps.Revoker,
		events:   deps.Dispatcher,
		logger:   deps.Logger,
	}
	if s.revoker == nil {
		s.revoker = auth.NoopRevoker{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// TokenManager exposes the codec for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.PublicAccount, error) {
	email := NormalizeEmail(in.Email)

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return domain.PublicAccount{}, apperrors.NewDuplicateEmail()
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.PublicAccount{}, apperrors.NewStoreUnavailable(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.PublicAccount{}, apperrors.NewInternalError(err)
	}

	account := &domain.Account{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.PublicAccount{}, apperrors.NewDuplicateEmail()
		}
		return domain.PublicAccount{}, apperrors.NewStoreUnavailable(err)
	}

	s.publish(ctx, events.NewEvent(events.EventAccountRegistered, account.ID, nil))
	return account.Public(), nil
}

// Login authenticates an account. An unknown email and a wrong password
// produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.Session, error) {
	account, err := s.accounts.GetByEmailWithSecret(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = s.hasher.Compare(s.dummy(), password)
			return domain.Session{}, apperrors.NewInvalidCredentials()
		}
		return domain.Session{}, apperrors.NewStoreUnavailable(err)
	}

	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return domain.Session{}, apperrors.NewInvalidCredentials()
		}
		return domain.Session{}, apperrors.NewInternalError(err)
	}

	token, err := s.tokens.GenerateToken(account.ID, account.Email)
	if err != nil {
		return domain.Session{}, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.NewEvent(events.EventAccountLoggedIn, account.ID, nil))
	return domain.Session{Account: account.Public(), Token: token}, nil
}

// Refresh exchanges a valid token for a new one with a strictly later expiry.
// The presented token stays valid until its own expiry.
func (s *AuthService) Refresh(ctx context.Context, raw string) (domain.Token, error) {
	claims, err := s.tokens.ParseToken(raw)
	if err != nil {
		return domain.Token{}, auth.TokenError(err)
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return domain.Token{}, auth.LookupFailure(err)
	}
	if revoked {
		return domain.Token{}, apperrors.NewUnauthenticated(apperrors.ReasonInvalid, "invalid token")
	}

	account, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Token{}, apperrors.NewUnauthenticated(apperrors.ReasonInvalid, "account no longer exists")
		}
		return domain.Token{}, auth.LookupFailure(err)
	}

	token, err := s.tokens.Reissue(account.ID, account.Email, claims.ExpiresAt.Time)
	if err != nil {
		return domain.Token{}, apperrors.NewInternalError(err)
	}
	return token, nil
}

// Logout revokes the presented token when it is still valid. It never fails:
// the client clears its session regardless.
func (s *AuthService) Logout(ctx context.Context, raw string) {
	if raw == "" {
		return
	}
	claims, err := s.tokens.ParseToken(raw)
	if err != nil {
		s.logger.Debug("logout with unusable token", zap.Error(err))
		return
	}

	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Warn("token revocation failed", zap.Int64("account_id", claims.AccountID), zap.Error(err))
	}
	s.publish(ctx, events.NewEvent(events.EventAccountLoggedOut, claims.AccountID, nil))
}

// Profile returns the caller's public projection.
func (s *AuthService) Profile(ctx context.Context, accountID int64) (domain.PublicAccount, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return domain.PublicAccount{}, lookupError(err, accountID)
	}
	return account.Public(), nil
}

// UpdateProfile applies a patch to the caller's own account. Changing the
// password requires proving the current one.
func (s *AuthService) UpdateProfile(ctx context.Context, accountID int64, in ProfileUpdate) (domain.PublicAccount, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return domain.PublicAccount{}, lookupError(err, accountID)
	}

	var newHash string
	if in.NewPassword != "" {
		if newHash, err = s.verifyAndHash(ctx, account.Email, in.CurrentPassword, in.NewPassword); err != nil {
			return domain.PublicAccount{}, err
		}
	}

	fields, err := updateAccount(ctx, s.accounts, account, in.Patch, newHash)
	if err != nil {
		return domain.PublicAccount{}, err
	}

	s.publish(ctx, events.NewEvent(events.EventAccountUpdated, account.ID, events.AccountUpdatedPayload{
		Fields:          fields,
		PasswordChanged: newHash != "",
	}))
	return account.Public(), nil
}

func (s *AuthService) verifyAndHash(ctx context.Context, email, current, next string) (string, error) {
	if current == "" {
		return "", apperrors.NewInvalidCredentials()
	}
	withSecret, err := s.accounts.GetByEmailWithSecret(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewInvalidCredentials()
		}
		return "", apperrors.NewStoreUnavailable(err)
	}
	if err := s.hasher.Compare(withSecret.PasswordHash, current); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return "", apperrors.NewInvalidCredentials()
		}
		return "", apperrors.NewInternalError(err)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return hash, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Error("dummy hash generation failed", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.events, s.logger, event)
}
