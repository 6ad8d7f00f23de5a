package auth

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/user-directory/pkg/util/errorutil"
)

// VerifyOwnership only lets the authenticated caller act on the account named
// by the given route parameter. It must run after Handle.
func VerifyOwnership(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewForbidden("access denied")
		}

		id, err := ParseAccountID(c.Params(param))
		if err != nil {
			return err
		}
		if id != identity.AccountID {
			return apperrors.NewForbidden("access denied: you can only modify your own account")
		}
		return c.Next()
	}
}

// ParseAccountID parses a positive account id from a path segment.
func ParseAccountID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid user id", map[string]interface{}{"id": raw})
	}
	return id, nil
}
