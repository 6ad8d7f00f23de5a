package dto

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"

	apperrors "github.com/spec-kit/user-directory/pkg/util/errorutil"
)

const passwordSpecials = "@$!%*?&"

var (
	namePattern  = regexp.MustCompile(`^[\p{L}\s]+$`)
	phonePattern = regexp.MustCompile(`^[+]?[0-9\-()\s]{7,20}$`)

	nameRules = []validation.Rule{
		validation.RuneLength(2, 100),
		validation.Match(namePattern).Error("must contain only letters and spaces"),
	}
	phoneRules = []validation.Rule{
		validation.Length(7, 20),
		validation.Match(phonePattern).Error("must be a valid phone number"),
	}
	passwordRules = []validation.Rule{
		validation.RuneLength(8, 128),
		validation.By(passwordPolicy),
	}
)

// passwordPolicy requires a lower case letter, an upper case letter, a digit
// and one of @$!%*?&, and allows nothing else.
func passwordPolicy(value interface{}) error {
	value, _ = validation.Indirect(value)
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case r > unicode.MaxASCII:
			return errors.New("may only contain letters, digits and " + passwordSpecials)
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return errors.New("may only contain letters, digits and " + passwordSpecials)
		}
	}
	if !lower || !upper || !digit || !special {
		return errors.New("must contain a lower case letter, an upper case letter, a digit and one of " + passwordSpecials)
	}
	return nil
}

// rules builds a field rule list with an optional leading presence rule.
func rules(presence validation.Rule, rest []validation.Rule) []validation.Rule {
	return append([]validation.Rule{presence}, rest...)
}

// AsDomainError converts ozzo validation errors into a VALIDATION_FAILED
// error whose details map each field to its message.
func AsDomainError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			details[field] = fieldErr.Error()
		}
		return apperrors.NewValidationError("validation failed", details)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

// requiredWith makes a field mandatory when other is set.
func requiredWith(other string) validation.RuleFunc {
	return func(value interface{}) error {
		if other == "" {
			return nil
		}
		return validation.Required.Validate(value)
	}
}
