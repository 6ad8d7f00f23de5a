package dto

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/spec-kit/user-directory/internal/domain"
	apperrors "github.com/spec-kit/user-directory/pkg/util/errorutil"
)

// UpdateUserRequest carries directory record changes.
type UpdateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// Sanitize trims whitespace around the text fields.
func (r *UpdateUserRequest) Sanitize() {
	trimPtr(r.Name)
	trimPtr(r.Email)
	trimPtr(r.Phone)
}

// Validate checks the update payload.
func (r UpdateUserRequest) Validate() error {
	if r.Name == nil && r.Email == nil && r.Phone == nil {
		return apperrors.NewValidationError("at least one field must be provided", nil)
	}
	return AsDomainError(validation.ValidateStruct(&r,
		validation.Field(&r.Name, rules(validation.NilOrNotEmpty, nameRules)...),
		validation.Field(&r.Email, validation.NilOrNotEmpty, validation.Length(0, 255), is.Email),
		validation.Field(&r.Phone, rules(validation.NilOrNotEmpty, phoneRules)...),
	))
}

// Patch returns the field changes.
func (r UpdateUserRequest) Patch() domain.AccountPatch {
	return domain.AccountPatch{Name: r.Name, Email: r.Email, Phone: r.Phone}
}
