package utils

import (
	"regexp"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
)

var (
	validate *validator.Validate

	slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	RegisterCustomValidations()
}

// ValidateStruct validates a struct using validation tags
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	return nil
}

// ValidateVar validates a single value against a tag expression
func ValidateVar(value interface{}, tag string) error {
	return validate.Var(value, tag)
}

// IsValidUniqueName checks the characters allowed in a unique name
func IsValidUniqueName(value string) bool {
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		switch r {
		case '-', '.', '_', '@', '+':
			continue
		}
		return false
	}
	return true
}

// IsValidIdentifier checks a code-friendly identifier
func IsValidIdentifier(value string) bool {
	for i, r := range value {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

// IsValidSlug checks a lowercase, hyphen separated slug
func IsValidSlug(value string) bool {
	return slugPattern.MatchString(value)
}

// IsValidLocale checks a BCP 47 locale code
func IsValidLocale(value string) bool {
	_, err := language.Parse(value)
	return err == nil
}

// RegisterCustomValidations registers custom validation functions
func RegisterCustomValidations() {
	validate.RegisterValidation("unique_name", func(fl validator.FieldLevel) bool {
		return IsValidUniqueName(fl.Field().String())
	})

	validate.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return IsValidIdentifier(fl.Field().String())
	})

	validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return IsValidSlug(fl.Field().String())
	})

	validate.RegisterValidation("locale", func(fl validator.FieldLevel) bool {
		return IsValidLocale(fl.Field().String())
	})
}
