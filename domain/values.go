package domain

import (
	"strings"

	"golang.org/x/text/language"

	"example.com/backstage/services/portal/utils"
)

// MaxLength is the length limit of names and identifiers
const MaxLength = 255

// UniqueName is a scoped, case-insensitively unique name
type UniqueName string

// NewUniqueName trims and validates a unique name
func NewUniqueName(value string) (UniqueName, error) {
	value = strings.TrimSpace(value)
	if err := utils.ValidateVar(value, "required,max=255,unique_name"); err != nil {
		return "", NewValidationError("UniqueName", err)
	}
	return UniqueName(value), nil
}

func (n UniqueName) String() string { return string(n) }

// Identifier is a code-friendly name, such as a field definition name
type Identifier string

// NewIdentifier trims and validates an identifier
func NewIdentifier(value string) (Identifier, error) {
	value = strings.TrimSpace(value)
	if err := utils.ValidateVar(value, "required,max=255,identifier"); err != nil {
		return "", NewValidationError("UniqueName", err)
	}
	return Identifier(value), nil
}

func (i Identifier) String() string { return string(i) }

// Slug is a lowercase, URL friendly name
type Slug string

// NewSlug trims and validates a slug
func NewSlug(value string) (Slug, error) {
	value = strings.TrimSpace(value)
	if err := utils.ValidateVar(value, "required,max=255,slug"); err != nil {
		return "", NewValidationError("UniqueSlug", err)
	}
	return Slug(value), nil
}

func (s Slug) String() string { return string(s) }

// DisplayName is a human readable name
type DisplayName string

// NewDisplayName trims and validates a display name
func NewDisplayName(value string) (DisplayName, error) {
	value = strings.TrimSpace(value)
	if err := utils.ValidateVar(value, "required,max=255"); err != nil {
		return "", NewValidationError("DisplayName", err)
	}
	return DisplayName(value), nil
}

// TryDisplayName returns nil for blank input
func TryDisplayName(value *string) (*DisplayName, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	name, err := NewDisplayName(*value)
	if err != nil {
		return nil, err
	}
	return &name, nil
}

// TryDescription trims a description and returns nil for blank input
func TryDescription(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Locale is a canonical BCP 47 language tag
type Locale string

// NewLocale parses and canonicalizes a locale code
func NewLocale(value string) (Locale, error) {
	value = strings.TrimSpace(value)
	if err := utils.ValidateVar(value, "required,max=16,locale"); err != nil {
		return "", NewValidationError("Locale", err)
	}
	tag, err := language.Parse(value)
	if err != nil {
		return "", NewValidationError("Locale", err)
	}
	return Locale(tag.String()), nil
}

func (l Locale) String() string { return string(l) }

// NormalizeName is the case-insensitive comparison form of a name
func NormalizeName(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}
