package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-directory/internal/api/dto"
	"github.com/spec-kit/user-directory/internal/domain"
	apperrors "github.com/spec-kit/user-directory/pkg/util/errorutil"
)

// LoginResult is the body of a successful login.
type LoginResult struct {
	User domain.PublicAccount `json:"user"`
	Auth dto.AuthResponse     `json:"auth"`
}

// APIClient talks to the user directory HTTP API.
type APIClient struct {
	baseURL string
	timeout time.Duration
}

// NewAPIClient targets baseURL, for example http://localhost:3000/api/v1.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (c *APIClient) Register(ctx context.Context, req dto.RegisterRequest) (domain.PublicAccount, error) {
	var out struct {
		User domain.PublicAccount `json:"user"`
	}
	err := c.do(ctx, fiber.MethodPost, "/auth/register", "", req, &out)
	return out.User, err
}

func (c *APIClient) Login(ctx context.Context, req dto.LoginRequest) (LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, fiber.MethodPost, "/auth/login", "", req, &out)
	return out, err
}

func (c *APIClient) Profile(ctx context.Context, token string) (domain.PublicAccount, error) {
	var out struct {
		User domain.PublicAccount `json:"user"`
	}
	err := c.do(ctx, fiber.MethodGet, "/auth/profile", token, nil, &out)
	return out.User, err
}

func (c *APIClient) UpdateProfile(ctx context.Context, token string, req dto.UpdateProfileRequest) (domain.PublicAccount, error) {
	var out struct {
		User domain.PublicAccount `json:"user"`
	}
	err := c.do(ctx, fiber.MethodPut, "/auth/profile", token, req, &out)
	return out.User, err
}

func (c *APIClient) Refresh(ctx context.Context, token string) (dto.AuthResponse, error) {
	var out struct {
		Auth dto.AuthResponse `json:"auth"`
	}
	err := c.do(ctx, fiber.MethodPost, "/auth/refresh", token, nil, &out)
	return out.Auth, err
}

func (c *APIClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, fiber.MethodPost, "/auth/logout", token, nil, nil)
}

func (c *APIClient) do(ctx context.Context, method, path, token string, body, out any) error {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a := fiber.AcquireAgent()
	req := a.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	a.Timeout(timeout)
	if token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if body != nil {
		a.JSON(body)
	}
	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		return fmt.Errorf("prepare %s %s: %w", method, path, err)
	}

	status, raw, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("%s %s: %w", method, path, errors.Join(errs...))
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && status < http.StatusBadRequest {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}

	if status >= http.StatusBadRequest {
		if env.Error == nil {
			return apperrors.NewDomainError("HTTP_ERROR", http.StatusText(status), status, nil)
		}
		return apperrors.NewDomainError(env.Error.Code, env.Error.Message, status, env.Error.Details)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
