package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-directory/internal/api/dto"
	"github.com/spec-kit/user-directory/internal/auth"
	"github.com/spec-kit/user-directory/internal/service"
)

// UsersHandler exposes the user directory.
type UsersHandler struct {
	accounts *service.AccountService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(accounts *service.AccountService) *UsersHandler {
	return &UsersHandler{accounts: accounts}
}

// List handles GET /users. Unparseable page or limit values fall back to defaults.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	page, err := h.accounts.List(c.UserContext(), service.ListQuery{
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", service.DefaultPageSize),
		Search: c.Query("search"),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": page})
}

// Search handles GET /users/search?q=.
func (h *UsersHandler) Search(c *fiber.Ctx) error {
	accounts, err := h.accounts.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"users": accounts, "count": len(accounts)}})
}

// Stats handles GET /users/stats.
func (h *UsersHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.accounts.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Get handles GET /users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	id, err := auth.ParseAccountID(c.Params("id"))
	if err != nil {
		return err
	}

	account, err := h.accounts.Get(c.UserContext(), id)
	if err != nil {
		return err
	}

	identity, ok := auth.IdentityFromContext(c)
	return c.JSON(fiber.Map{"data": fiber.Map{
		"user":    account,
		"is_self": ok && identity.AccountID == id,
	}})
}

// Update handles PUT /users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	id, err := auth.ParseAccountID(c.Params("id"))
	if err != nil {
		return err
	}

	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	req.Sanitize()
	if err := req.Validate(); err != nil {
		return err
	}

	account, err := h.accounts.Update(c.UserContext(), id, req.Patch())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"user": account}})
}

// Delete handles DELETE /users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	id, err := auth.ParseAccountID(c.Params("id"))
	if err != nil {
		return err
	}

	if err := h.accounts.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id, "deleted": true}})
}
