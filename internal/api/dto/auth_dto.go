package dto

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/spec-kit/user-directory/internal/domain"
	apperrors "github.com/spec-kit/user-directory/pkg/util/errorutil"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Sanitize trims whitespace around the text fields.
func (r *RegisterRequest) Sanitize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
}

// Validate checks the registration payload.
func (r RegisterRequest) Validate() error {
	return AsDomainError(validation.ValidateStruct(&r,
		validation.Field(&r.Name, rules(validation.Required, nameRules)...),
		validation.Field(&r.Email, validation.Required, validation.Length(0, 255), is.Email),
		validation.Field(&r.Phone, rules(validation.Required, phoneRules)...),
		validation.Field(&r.Password, rules(validation.Required, passwordRules)...),
	))
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the login payload.
func (r LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return AsDomainError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	))
}

// UpdateProfileRequest carries optional profile changes. Setting
// new_password requires current_password.
type UpdateProfileRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Phone           *string `json:"phone"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     string  `json:"new_password"`
}

// Sanitize trims whitespace around the text fields.
func (r *UpdateProfileRequest) Sanitize() {
	trimPtr(r.Name)
	trimPtr(r.Email)
	trimPtr(r.Phone)
}

// Validate checks the profile payload.
func (r UpdateProfileRequest) Validate() error {
	if r.Name == nil && r.Email == nil && r.Phone == nil && r.NewPassword == "" {
		return apperrors.NewValidationError("at least one field must be provided", nil)
	}
	return AsDomainError(validation.ValidateStruct(&r,
		validation.Field(&r.Name, rules(validation.NilOrNotEmpty, nameRules)...),
		validation.Field(&r.Email, validation.NilOrNotEmpty, validation.Length(0, 255), is.Email),
		validation.Field(&r.Phone, rules(validation.NilOrNotEmpty, phoneRules)...),
		validation.Field(&r.CurrentPassword, validation.By(requiredWith(r.NewPassword))),
		validation.Field(&r.NewPassword, passwordRules...),
	))
}

// Patch returns the public field changes.
func (r UpdateProfileRequest) Patch() domain.AccountPatch {
	return domain.AccountPatch{Name: r.Name, Email: r.Email, Phone: r.Phone}
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewAuthResponse renders an issued token.
func NewAuthResponse(token domain.Token) AuthResponse {
	return AuthResponse{Token: token.Value, ExpiresAt: token.ExpiresAt}
}
