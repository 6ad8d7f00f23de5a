package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/user-directory/internal/api/dto"
	apperrors "github.com/spec-kit/user-directory/pkg/util/errorutil"
)

func startAPI(t *testing.T, setup func(app *fiber.App)) *APIClient {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	setup(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return NewAPIClient("http://"+ln.Addr().String()+"/api/v1/", 2*time.Second)
}

func TestAPIClient_LoginDecodesData(t *testing.T) {
	var gotBody dto.LoginRequest
	api := startAPI(t, func(app *fiber.App) {
		app.Post("/api/v1/auth/login", func(c *fiber.Ctx) error {
			if err := c.BodyParser(&gotBody); err != nil {
				return err
			}
			return c.JSON(fiber.Map{"data": fiber.Map{
				"user": fiber.Map{"id": 1, "name": "Ana", "email": "ana@x.io"},
				"auth": fiber.Map{"token": "T1", "expires_at": "2026-01-01T00:00:00Z"},
			}})
		})
	})

	res, err := api.Login(context.Background(), dto.LoginRequest{Email: "ana@x.io", Password: "Abcd123!"})
	require.NoError(t, err)
	assert.Equal(t, "ana@x.io", gotBody.Email)
	assert.EqualValues(t, 1, res.User.ID)
	assert.Equal(t, "T1", res.Auth.Token)
}

func TestAPIClient_SendsBearerToken(t *testing.T) {
	var gotHeader string
	api := startAPI(t, func(app *fiber.App) {
		app.Get("/api/v1/auth/profile", func(c *fiber.Ctx) error {
			gotHeader = c.Get(fiber.HeaderAuthorization)
			return c.JSON(fiber.Map{"data": fiber.Map{"user": fiber.Map{"id": 1, "name": "Ana"}}})
		})
	})

	user, err := api.Profile(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer T1", gotHeader)
	assert.Equal(t, "Ana", user.Name)
}

func TestAPIClient_ErrorEnvelope(t *testing.T) {
	api := startAPI(t, func(app *fiber.App) {
		app.Post("/api/v1/auth/refresh", func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": fiber.Map{
				"code":    apperrors.CodeUnauthenticated,
				"message": "token expired, please sign in again",
				"details": fiber.Map{"reason": "expired"},
			}})
		})
	})

	_, err := api.Refresh(context.Background(), "T1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated))
	assert.Equal(t, apperrors.ReasonExpired, apperrors.Reason(err))
}

func TestAPIClient_NonJSONError(t *testing.T) {
	api := startAPI(t, func(app *fiber.App) {
		app.Post("/api/v1/auth/logout", func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusBadGateway).SendString("upstream")
		})
	})

	err := api.Logout(context.Background(), "T1")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, fiber.StatusBadGateway, domainErr.HTTPStatus)
}

func TestAPIClient_CancelledContext(t *testing.T) {
	api := NewAPIClient("http://127.0.0.1:1", time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := api.Logout(ctx, "T1")
	require.ErrorIs(t, err, context.Canceled)
}
