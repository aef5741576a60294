package postAuth

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,64}$`)

func newValidator(minPasswordLength int) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String(), minPasswordLength)
	})
	return v
}

// strongPassword requires minLength characters with at least one lowercase
// letter, uppercase letter, digit, and symbol.
func strongPassword(password string, minLength int) bool {
	if len([]rune(password)) < minLength || len(password) > 256 {
		return false
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}

// validationOrder fixes which field's error is reported when several fail.
var validationOrder = []struct {
	field string
	err   error
}{
	{"Username", ErrInvalidUsername},
	{"Email", ErrInvalidEmail},
	{"Password", ErrWeakPassword},
	{"PhoneNumber", ErrInvalidPhoneNumber},
}

func (e *Engine) validateRegistration(in RegisterInput) error {
	err := e.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ErrMissingParameters
	}

	failed := make(map[string]bool, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return ErrMissingParameters
		}
		failed[fe.StructField()] = true
	}
	for _, o := range validationOrder {
		if failed[o.field] {
			return o.err
		}
	}
	return ErrMissingParameters
}

func (e *Engine) validatePhoneNumber(phone string) error {
	if strings.TrimSpace(phone) == "" {
		return ErrMissingParameters
	}
	if err := e.validate.Var(phone, "e164"); err != nil {
		return ErrInvalidPhoneNumber
	}
	return nil
}

func normalizeRegistration(in RegisterInput) RegisterInput {
	return RegisterInput{
		Username:    strings.TrimSpace(in.Username),
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		Password:    in.Password,
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
	}
}
