package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}
var validLogFormats = []string{"text", "json"}

// Validate checks the configuration and returns the first problem found
// as a ValidationError.
func Validate(cfg *Config) error {
	v := validator.New()

	if err := v.RegisterValidation("log_level", func(fl validator.FieldLevel) bool {
		return slices.Contains(validLogLevels, fl.Field().String())
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation("log_format", func(fl validator.FieldLevel) bool {
		return slices.Contains(validLogFormats, fl.Field().String())
	}); err != nil {
		return err
	}

	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return ValidationError{
			Field:   fe.Namespace(),
			Message: describeFailure(fe),
			Value:   fe.Value(),
		}
	}
	return err
}

func describeFailure(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "log_level":
		return fmt.Sprintf("must be one of %v", validLogLevels)
	case "log_format":
		return fmt.Sprintf("must be one of %v", validLogFormats)
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
