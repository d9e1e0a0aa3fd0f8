package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"example.com/backstage/services/portal/domain"
)

const stepTolerance = 1e-9

// ValidateValue checks a field value against the settings of its field type.
// The returned error describes the first rule the value breaks.
func ValidateValue(settings domain.FieldSettings, value string) error {
	switch s := settings.(type) {
	case domain.BooleanSettings:
		if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("must be a boolean")
		}
	case domain.DateTimeSettings:
		return validateDateTime(s, value)
	case domain.NumberSettings:
		return validateNumber(s, value)
	case domain.RelatedContentSettings:
		return validateRelatedContent(s, value)
	case domain.RichTextSettings:
		return validateLength(value, s.MinimumLength, s.MaximumLength)
	case domain.SelectSettings:
		return validateSelect(s, value)
	case domain.StringSettings:
		if err := validateLength(value, s.MinimumLength, s.MaximumLength); err != nil {
			return err
		}
		if s.Pattern != nil {
			pattern, err := regexp.Compile(*s.Pattern)
			if err != nil {
				return fmt.Errorf("field type pattern is invalid: %w", err)
			}
			if !pattern.MatchString(value) {
				return fmt.Errorf("must match the pattern %s", *s.Pattern)
			}
		}
	case domain.TagsSettings:
		tags, err := decodeList(value)
		if err != nil {
			return err
		}
		if lo.SomeBy(tags, func(tag string) bool { return strings.TrimSpace(tag) == "" }) {
			return fmt.Errorf("must not contain empty tags")
		}
	default:
		return &domain.DataTypeNotSupportedError{}
	}
	return nil
}

func validateDateTime(s domain.DateTimeSettings, value string) error {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("must be an RFC 3339 date and time")
	}
	if s.MinimumValue != nil && parsed.Before(*s.MinimumValue) {
		return fmt.Errorf("must not be before %s", s.MinimumValue.Format(time.RFC3339))
	}
	if s.MaximumValue != nil && parsed.After(*s.MaximumValue) {
		return fmt.Errorf("must not be after %s", s.MaximumValue.Format(time.RFC3339))
	}
	return nil
}

func validateNumber(s domain.NumberSettings, value string) error {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return fmt.Errorf("must be a number")
	}
	if s.MinimumValue != nil && parsed < *s.MinimumValue {
		return fmt.Errorf("must be greater than or equal to %v", *s.MinimumValue)
	}
	if s.MaximumValue != nil && parsed > *s.MaximumValue {
		return fmt.Errorf("must be less than or equal to %v", *s.MaximumValue)
	}
	if s.Step != nil && *s.Step > 0 {
		quotient := (parsed - lo.FromPtr(s.MinimumValue)) / *s.Step
		if math.Abs(quotient-math.Round(quotient)) > stepTolerance {
			return fmt.Errorf("must be a multiple of %v", *s.Step)
		}
	}
	return nil
}

func validateRelatedContent(s domain.RelatedContentSettings, value string) error {
	ids := []string{value}
	if s.IsMultiple {
		var err error
		if ids, err = decodeList(value); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
			return fmt.Errorf("must reference content ids")
		}
	}
	return nil
}

func validateSelect(s domain.SelectSettings, value string) error {
	selected := []string{value}
	if s.IsMultiple {
		var err error
		if selected, err = decodeList(value); err != nil {
			return err
		}
	}
	for _, option := range selected {
		if !s.HasValue(option) {
			return fmt.Errorf("%q is not an option", option)
		}
	}
	return nil
}

func validateLength(value string, minimum, maximum *int) error {
	length := utf8.RuneCountInString(value)
	if minimum != nil && length < *minimum {
		return fmt.Errorf("must be at least %d characters long", *minimum)
	}
	if maximum != nil && length > *maximum {
		return fmt.Errorf("must be at most %d characters long", *maximum)
	}
	return nil
}

func decodeList(value string) ([]string, error) {
	var items []string
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return nil, fmt.Errorf("must be a JSON array of strings")
	}
	return items, nil
}
