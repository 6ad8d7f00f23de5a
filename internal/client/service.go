package client

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/user-directory/internal/api/dto"
	"github.com/spec-kit/user-directory/internal/domain"
	apperrors "github.com/spec-kit/user-directory/pkg/util/errorutil"
)

// ErrNotSignedIn is returned for operations that need a session when none exists.
var ErrNotSignedIn = errors.New("not signed in")

// API is the remote surface the client service uses.
type API interface {
	Register(ctx context.Context, req dto.RegisterRequest) (domain.PublicAccount, error)
	Login(ctx context.Context, req dto.LoginRequest) (LoginResult, error)
	Profile(ctx context.Context, token string) (domain.PublicAccount, error)
	UpdateProfile(ctx context.Context, token string, req dto.UpdateProfileRequest) (domain.PublicAccount, error)
	Refresh(ctx context.Context, token string) (dto.AuthResponse, error)
	Logout(ctx context.Context, token string) error
}

// Service drives the API and keeps the local session in step with it.
type Service struct {
	api     API
	session *Session
	logger  *zap.Logger
}

func NewService(api API, session *Session, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, session: session, logger: logger}
}

// Register creates an account. It does not sign in.
func (s *Service) Register(ctx context.Context, req dto.RegisterRequest) (domain.PublicAccount, error) {
	req.Sanitize()
	if err := req.Validate(); err != nil {
		return domain.PublicAccount{}, err
	}
	return s.api.Register(ctx, req)
}

// Login signs in and persists the session.
func (s *Service) Login(ctx context.Context, email, password string) (State, error) {
	req := dto.LoginRequest{Email: email, Password: password}
	if err := req.Validate(); err != nil {
		return State{}, err
	}

	res, err := s.api.Login(ctx, req)
	if err != nil {
		return State{}, err
	}
	if err := s.session.Save(ctx, res.Auth.Token, res.User); err != nil {
		return State{}, err
	}
	return s.session.Get(), nil
}

// Profile fetches the signed-in account and refreshes the cached copy.
func (s *Service) Profile(ctx context.Context) (domain.PublicAccount, error) {
	token, err := s.token()
	if err != nil {
		return domain.PublicAccount{}, err
	}

	user, err := s.api.Profile(ctx, token)
	if err != nil {
		return domain.PublicAccount{}, s.dropOnUnauthenticated(ctx, err)
	}
	if err := s.session.Save(ctx, token, user); err != nil {
		return domain.PublicAccount{}, err
	}
	return user, nil
}

// UpdateProfile applies profile changes for the signed-in account.
func (s *Service) UpdateProfile(ctx context.Context, req dto.UpdateProfileRequest) (domain.PublicAccount, error) {
	token, err := s.token()
	if err != nil {
		return domain.PublicAccount{}, err
	}
	req.Sanitize()
	if err := req.Validate(); err != nil {
		return domain.PublicAccount{}, err
	}

	user, err := s.api.UpdateProfile(ctx, token, req)
	if err != nil {
		return domain.PublicAccount{}, s.dropOnUnauthenticated(ctx, err)
	}
	if err := s.session.Save(ctx, token, user); err != nil {
		return domain.PublicAccount{}, err
	}
	return user, nil
}

// Refresh swaps the session token for a fresh one.
func (s *Service) Refresh(ctx context.Context) (dto.AuthResponse, error) {
	token, err := s.token()
	if err != nil {
		return dto.AuthResponse{}, err
	}

	res, err := s.api.Refresh(ctx, token)
	if err != nil {
		return dto.AuthResponse{}, s.dropOnUnauthenticated(ctx, err)
	}
	if err := s.session.SetToken(ctx, res.Token); err != nil {
		return dto.AuthResponse{}, err
	}
	return res, nil
}

// Logout notifies the server when possible and always clears the local
// session. Failures are logged; signing out never fails for the caller.
func (s *Service) Logout(ctx context.Context) {
	if state := s.session.Get(); state.Token != "" {
		if err := s.api.Logout(ctx, state.Token); err != nil {
			s.logger.Warn("server logout failed", zap.Error(err))
		}
	}
	if err := s.session.Clear(ctx); err != nil {
		s.logger.Warn("clear session failed", zap.Error(err))
	}
}

// Status returns the local session without contacting the server.
func (s *Service) Status() State {
	return s.session.Get()
}

func (s *Service) token() (string, error) {
	state := s.session.Get()
	if !state.Authenticated || state.Token == "" {
		return "", ErrNotSignedIn
	}
	return state.Token, nil
}

func (s *Service) dropOnUnauthenticated(ctx context.Context, err error) error {
	if !apperrors.HasCode(err, apperrors.CodeUnauthenticated) {
		return err
	}
	if clearErr := s.session.Clear(ctx); clearErr != nil {
		s.logger.Warn("clear session failed", zap.Error(clearErr))
	}
	return err
}

// UserMessage renders err for a person at a terminal.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotSignedIn):
		return "not signed in, run login first"
	case apperrors.HasCode(err, apperrors.CodeInvalidCredentials):
		return "invalid email or password"
	case apperrors.HasCode(err, apperrors.CodeUnauthenticated):
		if apperrors.Reason(err) == apperrors.ReasonExpired {
			return "session expired, please log in again"
		}
		return "session is no longer valid, please log in again"
	}

	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
