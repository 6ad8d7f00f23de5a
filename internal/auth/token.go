package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/user-directory/internal/domain"
)

var (
	// ErrMalformedToken covers bad signatures, bad structure and unexpected algorithms.
	ErrMalformedToken = errors.New("malformed token")
	// ErrExpiredToken is returned for intact tokens whose expiry has passed.
	ErrExpiredToken = errors.New("token expired")
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) {
		if now != nil {
			tm.now = now
		}
	}
}

// WithLeeway allows tokens to be accepted for d past their expiry.
func WithLeeway(d time.Duration) TokenOption {
	return func(tm *TokenManager) {
		if d > 0 {
			tm.leeway = d
		}
	}
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration, opts ...TokenOption) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	tm := &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// Claims describes JWT payload.
type Claims struct {
	AccountID int64  `json:"uid"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// TTL returns the validity window of newly issued tokens.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// GenerateToken builds and signs a JWT for the account.
func (tm *TokenManager) GenerateToken(accountID int64, email string) (domain.Token, error) {
	now := tm.now()
	return tm.sign(accountID, email, now, now.Add(tm.ttl))
}

// Reissue signs a fresh token whose expiry is strictly later than after.
// Expiry has second precision, so a refresh inside the same second as the
// previous issuance is pushed one second past the old expiry.
func (tm *TokenManager) Reissue(accountID int64, email string, after time.Time) (domain.Token, error) {
	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	if !expiresAt.Truncate(jwt.TimePrecision).After(after) {
		expiresAt = after.Truncate(jwt.TimePrecision).Add(jwt.TimePrecision)
	}
	return tm.sign(accountID, email, now, expiresAt)
}

func (tm *TokenManager) sign(accountID int64, email string, issuedAt, expiresAt time.Time) (domain.Token, error) {
	claims := &Claims{
		AccountID: accountID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(accountID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return domain.Token{}, err
	}
	return claims.toToken(tokenString), nil
}

// ParseToken validates the signature and expiry and returns the claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tm.leeway),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.AccountID <= 0 || claims.ID == "" {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// Token converts verified claims into the domain token they describe.
func (c *Claims) Token(raw string) domain.Token {
	return c.toToken(raw)
}

func (c *Claims) toToken(raw string) domain.Token {
	tok := domain.Token{
		Value:     raw,
		ID:        c.ID,
		AccountID: c.AccountID,
		Email:     c.Email,
	}
	if c.IssuedAt != nil {
		tok.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		tok.ExpiresAt = c.ExpiresAt.Time
	}
	return tok
}
