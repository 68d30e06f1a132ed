package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sahilchouksey/coursehub-api/model"
)

var (
	// EmailRegex is a simple email validation regex
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// PhoneRegex accepts 7 to 14 digits
	PhoneRegex = regexp.MustCompile(`^[0-9]{7,14}$`)

	// HoursRegex matches course durations written as HH:mm
	HoursRegex = regexp.MustCompile(`^[0-9]{1,3}:[0-5][0-9]$`)

	// PlainNameRegex allows letters, digits, spaces and basic punctuation
	PlainNameRegex = regexp.MustCompile(`^[\p{L}\p{N} .,&'()\-]+$`)
)

// Validator wraps the go-playground validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance with the custom tags registered
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return ValidatePhone(fl.Field().String())
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return HoursRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("nospecial", func(fl validator.FieldLevel) bool {
		return PlainNameRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("paymentmode", func(fl validator.FieldLevel) bool {
		return slices.Contains(model.PaymentModes, fl.Field().String())
	})
	return &Validator{
		validate: v,
	}
}

// ValidateStruct validates a struct using struct tags
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

// ValidateExcept validates a struct, skipping the named fields
func (v *Validator) ValidateExcept(s interface{}, fields ...string) error {
	return v.validate.StructExcept(s, fields...)
}

// FormatValidationErrors converts validation errors to a user-friendly format
func FormatValidationErrors(err error) map[string]string {
	errors := make(map[string]string)

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			field := strings.ToLower(e.Field())
			switch e.Tag() {
			case "required":
				errors[field] = fmt.Sprintf("%s is required", e.Field())
			case "email":
				errors[field] = "Invalid email format"
			case "phone":
				errors[field] = "Phone number must be 7 to 14 digits"
			case "hhmm":
				errors[field] = fmt.Sprintf("%s must be in HH:mm format", e.Field())
			case "nospecial":
				errors[field] = fmt.Sprintf("%s must not contain special characters", e.Field())
			case "paymentmode":
				errors[field] = "Unsupported payment mode"
			case "min":
				errors[field] = fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
			case "max":
				errors[field] = fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
			case "gte":
				errors[field] = fmt.Sprintf("%s must be greater than or equal to %s", e.Field(), e.Param())
			case "lte":
				errors[field] = fmt.Sprintf("%s must be less than or equal to %s", e.Field(), e.Param())
			case "oneof":
				errors[field] = fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
			default:
				errors[field] = fmt.Sprintf("%s is invalid", e.Field())
			}
		}
	}

	return errors
}

// ValidateEmail checks if an email is valid
func ValidateEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	return EmailRegex.MatchString(email)
}

// ValidatePhone checks a phone number made of 7 to 14 digits
func ValidatePhone(phone string) bool {
	return PhoneRegex.MatchString(phone)
}

// SanitizeString removes potentially dangerous characters
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")
	// Trim whitespace
	s = strings.TrimSpace(s)
	return s
}
