package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is wrapped by every error returned from this package.
var ErrInvalid = errors.New("invalid value")

// Error describes one rejected value.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Message)
}

func (e *Error) Unwrap() error { return ErrInvalid }

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("state", validateState); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("win_folder", validateWindowsFolder); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("win_file", validateWindowsFile); err != nil {
		panic(err)
	}
}

// validateState accepts the "1"/"0" flags used for every boolean setting.
func validateState(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	return v == "0" || v == "1"
}

func validateWindowsFolder(fl validator.FieldLevel) bool {
	return strings.HasSuffix(fl.Field().String(), `\`)
}

func validateWindowsFile(fl validator.FieldLevel) bool {
	return !strings.HasSuffix(fl.Field().String(), `\`)
}

// Var validates a single value against a validator tag and converts the
// result into an *Error naming field.
func Var(field string, value any, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &Error{Field: field, Value: value, Message: describe(verrs[0])}
	}
	return fmt.Errorf("failed to validate %s: %w", field, err)
}

// Struct validates a struct carrying `validate` tags.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &Error{Field: fe.Field(), Value: fe.Value(), Message: describe(fe)}
	}
	return fmt.Errorf("failed to validate: %w", err)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "required":
		return "is required"
	case "state":
		return `must be "1" (enabled) or "0" (disabled)`
	case "win_folder":
		return `folder path must end with "\"`
	case "win_file":
		return `file name must not end with "\"`
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

// Range validates min <= v <= max.
func Range(field string, v, min, max int) error {
	return Var(field, v, fmt.Sprintf("gte=%d,lte=%d", min, max))
}

// Min validates v >= min.
func Min(field string, v, min int) error {
	return Var(field, v, fmt.Sprintf("gte=%d", min))
}

// State validates a "1"/"0" flag.
func State(field, v string) error {
	return Var(field, v, "state")
}

// Length validates the rune count of s.
func Length(field, s string, min, max int) error {
	return Var(field, s, fmt.Sprintf("min=%d,max=%d", min, max))
}

// WindowsFolder validates a non-empty folder path ending with a backslash.
func WindowsFolder(field, path string) error {
	return Var(field, path, "required,win_folder")
}

// WindowsFile validates a non-empty file name or path that is not a folder.
func WindowsFile(field, path string) error {
	return Var(field, path, "required,win_file")
}

// ValidateAllowlist checks if a value is in an allowed list
func ValidateAllowlist(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	quoted := make([]string, len(allowed))
	for i, a := range allowed {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	return &Error{Field: field, Value: fmt.Sprintf("%q", value), Message: "must be one of: " + strings.Join(quoted, ", ")}
}

// ValidatePortNumber validates a port number
func ValidatePortNumber(field string, port int) error {
	return Range(field, port, 1, 65535)
}
