package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
)

// Validator holds the singleton instance of the validator.
var defaultValidator *validator.Validate

var actionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

func init() {
	defaultValidator = validator.New()
	// Register custom validation functions
	_ = defaultValidator.RegisterValidation("action", validateAction)
	_ = defaultValidator.RegisterValidation("keytype", validateKeyType)
}

// ValidateStruct validates a struct using the default validator.
// It returns a formatted GateError if validation fails.
func ValidateStruct(s interface{}) errors.GateError {
	err := defaultValidator.Struct(s)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.ErrInvalidRequest(err.Error())
	}

	gateErr := errors.ErrInvalidRequest("validation failed")
	for _, fe := range validationErrors {
		gateErr.WithMetadata(toSnakeCase(fe.Field()), formatValidationError(fe))
	}
	return gateErr
}

// ValidateAction reports whether s is a well-formed action category name.
func ValidateAction(s string) bool {
	return actionPattern.MatchString(s)
}

// validateAction is a custom validation function for action category names.
func validateAction(fl validator.FieldLevel) bool {
	return ValidateAction(fl.Field().String())
}

// validateKeyType is a custom validation function for identity key types.
func validateKeyType(fl validator.FieldLevel) bool {
	return constants.KeyType(fl.Field().String()).Valid()
}

// formatValidationError creates a user-friendly error message for a validation error.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "action":
		return "must be a lowercase snake_case action name"
	case "keytype":
		return "must be one of: network, device, session"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}

// toSnakeCase converts a string from CamelCase to snake_case.
// This is used to format field names in the validation error response.
func toSnakeCase(str string) string {
	var matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	var matchAllCap = regexp.MustCompile("([a-z0-9])([A-Z])")
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}

// MaskString masks a string, showing only the first and last showChars characters
func MaskString(s string, showChars int) string {
	length := len(s)
	if length <= showChars*2 {
		return strings.Repeat("*", length)
	}

	return s[:showChars] + strings.Repeat("*", length-showChars*2) + s[length-showChars:]
}

//Personal.AI order the ending
