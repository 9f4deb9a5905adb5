package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var requestValidator = validator.New()

// textSanitizer strips all markup from user-authored text before storage.
var textSanitizer = bluemonday.StrictPolicy()

var usernameRegex = regexp.MustCompile(`^[a-z0-9_-]{3,32}$`)

func decodeAndValidate(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body")
	}

	if err := requestValidator.Struct(dst); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
			first := validationErrors[0]
			field := strings.ToLower(first.Field())
			switch first.Tag() {
			case "required":
				return fmt.Errorf("%s is required", field)
			case "email":
				return fmt.Errorf("invalid email format")
			case "len":
				return fmt.Errorf("invalid %s length", field)
			case "max":
				return fmt.Errorf("%s is too long", field)
			case "numeric":
				return fmt.Errorf("%s must contain only digits", field)
			case "url":
				return fmt.Errorf("%s must be a valid URL", field)
			case "latitude", "longitude":
				return fmt.Errorf("invalid %s", field)
			default:
				return fmt.Errorf("invalid %s", field)
			}
		}

		return fmt.Errorf("invalid request payload")
	}

	return nil
}

// normalizeEmail lowercases and trims an address; validity is checked
// separately with the validator's email rule.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return requestValidator.Var(email, "required,email,max=254") == nil
}

// sanitizeText strips markup and surrounding whitespace from user input.
func sanitizeText(s string) string {
	return strings.TrimSpace(textSanitizer.Sanitize(s))
}

func sanitizeTextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := sanitizeText(*s)
	return &clean
}
