package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/user-directory/internal/domain"
	"github.com/spec-kit/user-directory/internal/observability"
	apperrors "github.com/spec-kit/user-directory/pkg/util/errorutil"
)

const identityKey = "auth_identity"

// errNoCredential marks a request without an Authorization header.
var errNoCredential = errors.New("no credential")

// AccountFinder is the lookup the middleware needs to confirm an account still exists.
type AccountFinder interface {
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
}

// AuthMiddleware validates bearer tokens and attaches the caller identity.
type AuthMiddleware struct {
	tokens   *TokenManager
	revoker  Revoker
	accounts AccountFinder
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewAuthMiddleware constructs middleware. A nil revoker disables revocation checks.
func NewAuthMiddleware(tokens *TokenManager, revoker Revoker, accounts AccountFinder, logger *zap.Logger, metrics *observability.Metrics) *AuthMiddleware {
	if revoker == nil {
		revoker = NoopRevoker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, revoker: revoker, accounts: accounts, logger: logger, metrics: metrics}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	identity, err := m.authenticate(c)
	if err != nil {
		if errors.Is(err, errNoCredential) {
			err = apperrors.NewUnauthenticated(apperrors.ReasonMissing, "authorization token required")
		}
		m.metrics.RecordAuthFailure(apperrors.Reason(err))
		return err
	}

	c.Locals(identityKey, identity)
	return c.Next()
}

// Optional attaches an identity when a valid token is presented and otherwise
// lets the request through anonymously.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	identity, err := m.authenticate(c)
	if err != nil {
		if !errors.Is(err, errNoCredential) {
			m.logger.Debug("optional auth ignored credential", zap.String("reason", apperrors.Reason(err)))
		}
		return c.Next()
	}

	c.Locals(identityKey, identity)
	return c.Next()
}

func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (*domain.Identity, error) {
	raw, err := BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return nil, err
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return nil, TokenError(err)
	}

	ctx := c.UserContext()

	revoked, err := m.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, LookupFailure(err)
	}
	if revoked {
		return nil, apperrors.NewUnauthenticated(apperrors.ReasonInvalid, "invalid token")
	}

	if _, err := m.accounts.GetByID(ctx, claims.AccountID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthenticated(apperrors.ReasonInvalid, "account no longer exists")
		}
		return nil, LookupFailure(err)
	}

	return &domain.Identity{AccountID: claims.AccountID, Email: claims.Email}, nil
}

// TokenError converts a ParseToken failure into the matching 401.
func TokenError(err error) error {
	if errors.Is(err, ErrExpiredToken) {
		return apperrors.NewUnauthenticated(apperrors.ReasonExpired, "token expired, please sign in again")
	}
	return apperrors.NewUnauthenticated(apperrors.ReasonInvalid, "invalid token")
}

// LookupFailure never lets a failed lookup authorize a request: cancelled or
// timed out calls reject the credential, other failures are retryable.
func LookupFailure(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewUnauthenticated(apperrors.ReasonInvalid, "unable to verify token")
	}
	return apperrors.NewStoreUnavailable(err)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errNoCredential
	}

	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthenticated(apperrors.ReasonInvalid, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*domain.Identity)
	return identity, ok && identity != nil
}
