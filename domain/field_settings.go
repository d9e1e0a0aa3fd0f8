package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DataType is the kind of value a field type holds
type DataType string

// Supported data types
const (
	DataTypeBoolean        DataType = "Boolean"
	DataTypeDateTime       DataType = "DateTime"
	DataTypeNumber         DataType = "Number"
	DataTypeRelatedContent DataType = "RelatedContent"
	DataTypeRichText       DataType = "RichText"
	DataTypeSelect         DataType = "Select"
	DataTypeString         DataType = "String"
	DataTypeTags           DataType = "Tags"
)

// DataTypes lists every supported data type
var DataTypes = []DataType{
	DataTypeBoolean,
	DataTypeDateTime,
	DataTypeNumber,
	DataTypeRelatedContent,
	DataTypeRichText,
	DataTypeSelect,
	DataTypeString,
	DataTypeTags,
}

// ParseDataType resolves a data type name case-insensitively
func ParseDataType(value string) (DataType, error) {
	for _, dataType := range DataTypes {
		if strings.EqualFold(string(dataType), strings.TrimSpace(value)) {
			return dataType, nil
		}
	}
	return "", &DataTypeNotSupportedError{DataType: DataType(value)}
}

// FieldSettings is the data-type specific property bag of a field type
type FieldSettings interface {
	DataType() DataType
	Validate() error
}

// Rich text media types
const (
	MediaTypePlainText = "text/plain"
	MediaTypeHTML      = "text/html"
	MediaTypeMarkdown  = "text/markdown"
)

// BooleanSettings has no properties
type BooleanSettings struct{}

func (BooleanSettings) DataType() DataType { return DataTypeBoolean }
func (BooleanSettings) Validate() error    { return nil }

// DateTimeSettings bounds date-time values
type DateTimeSettings struct {
	MinimumValue *time.Time `json:"minimum_value,omitempty"`
	MaximumValue *time.Time `json:"maximum_value,omitempty"`
}

func (DateTimeSettings) DataType() DataType { return DataTypeDateTime }

func (s DateTimeSettings) Validate() error {
	errs := &ValidationError{}
	if s.MinimumValue != nil && s.MaximumValue != nil && s.MaximumValue.Before(*s.MinimumValue) {
		errs.Add("MaximumValue", "gte_minimum", "must be greater than or equal to the minimum value")
	}
	return errs.ErrorOrNil()
}

// NumberSettings bounds numeric values
type NumberSettings struct {
	MinimumValue *float64 `json:"minimum_value,omitempty"`
	MaximumValue *float64 `json:"maximum_value,omitempty"`
	Step         *float64 `json:"step,omitempty"`
}

func (NumberSettings) DataType() DataType { return DataTypeNumber }

func (s NumberSettings) Validate() error {
	errs := &ValidationError{}
	if s.MinimumValue != nil && s.MaximumValue != nil && *s.MaximumValue < *s.MinimumValue {
		errs.Add("MaximumValue", "gte_minimum", "must be greater than or equal to the minimum value")
	}
	if s.Step != nil && *s.Step <= 0 {
		errs.Add("Step", "gt", "must be greater than 0")
	}
	return errs.ErrorOrNil()
}

// RelatedContentSettings references the content type of related contents
type RelatedContentSettings struct {
	ContentTypeID uuid.UUID `json:"content_type_id"`
	IsMultiple    bool      `json:"is_multiple"`
}

func (RelatedContentSettings) DataType() DataType { return DataTypeRelatedContent }

func (s RelatedContentSettings) Validate() error {
	errs := &ValidationError{}
	if s.ContentTypeID == uuid.Nil {
		errs.Add("ContentTypeID", "required", "is required")
	}
	return errs.ErrorOrNil()
}

// RichTextSettings bounds rich text values
type RichTextSettings struct {
	ContentType   string `json:"content_type"`
	MinimumLength *int   `json:"minimum_length,omitempty"`
	MaximumLength *int   `json:"maximum_length,omitempty"`
}

func (RichTextSettings) DataType() DataType { return DataTypeRichText }

func (s RichTextSettings) Validate() error {
	errs := &ValidationError{}
	switch s.ContentType {
	case MediaTypePlainText, MediaTypeHTML, MediaTypeMarkdown:
	default:
		errs.Add("ContentType", "oneof", fmt.Sprintf("must be one of %s, %s or %s", MediaTypePlainText, MediaTypeHTML, MediaTypeMarkdown))
	}
	validateLengths(errs, s.MinimumLength, s.MaximumLength)
	return errs.ErrorOrNil()
}

// SelectOption is one choice of a select field
type SelectOption struct {
	Text       string  `json:"text"`
	Value      *string `json:"value,omitempty"`
	Label      *string `json:"label,omitempty"`
	IsDisabled bool    `json:"is_disabled"`
}

// EffectiveValue is the stored value of the option
func (o SelectOption) EffectiveValue() string {
	if o.Value != nil {
		return *o.Value
	}
	return o.Text
}

// SelectSettings lists the choices of a select field
type SelectSettings struct {
	Options    []SelectOption `json:"options"`
	IsMultiple bool           `json:"is_multiple"`
}

func (SelectSettings) DataType() DataType { return DataTypeSelect }

func (s SelectSettings) Validate() error {
	errs := &ValidationError{}
	for i, option := range s.Options {
		if strings.TrimSpace(option.Text) == "" {
			errs.Add(fmt.Sprintf("Options[%d].Text", i), "required", "is required")
		}
	}
	values := lo.Map(s.Options, func(option SelectOption, _ int) string { return option.EffectiveValue() })
	for _, duplicate := range lo.FindDuplicates(values) {
		errs.Add("Options", "unique", fmt.Sprintf("value %q is used by more than one option", duplicate))
	}
	return errs.ErrorOrNil()
}

// HasValue reports whether value matches an enabled option
func (s SelectSettings) HasValue(value string) bool {
	return lo.ContainsBy(s.Options, func(option SelectOption) bool {
		return !option.IsDisabled && option.EffectiveValue() == value
	})
}

// StringSettings bounds string values
type StringSettings struct {
	MinimumLength *int    `json:"minimum_length,omitempty"`
	MaximumLength *int    `json:"maximum_length,omitempty"`
	Pattern       *string `json:"pattern,omitempty"`
}

func (StringSettings) DataType() DataType { return DataTypeString }

func (s StringSettings) Validate() error {
	errs := &ValidationError{}
	validateLengths(errs, s.MinimumLength, s.MaximumLength)
	if s.Pattern != nil {
		if _, err := regexp.Compile(*s.Pattern); err != nil {
			errs.Add("Pattern", "regexp", "must be a valid regular expression")
		}
	}
	return errs.ErrorOrNil()
}

// TagsSettings has no properties
type TagsSettings struct{}

func (TagsSettings) DataType() DataType { return DataTypeTags }
func (TagsSettings) Validate() error    { return nil }

func validateLengths(errs *ValidationError, minimum, maximum *int) {
	if minimum != nil && *minimum < 0 {
		errs.Add("MinimumLength", "gte", "must be greater than or equal to 0")
	}
	if maximum != nil && *maximum < 0 {
		errs.Add("MaximumLength", "gte", "must be greater than or equal to 0")
	}
	if minimum != nil && maximum != nil && *maximum < *minimum {
		errs.Add("MaximumLength", "gte_minimum", "must be greater than or equal to the minimum length")
	}
}

// DefaultSettings returns the empty settings of a data type
func DefaultSettings(dataType DataType) (FieldSettings, error) {
	switch dataType {
	case DataTypeBoolean:
		return BooleanSettings{}, nil
	case DataTypeDateTime:
		return DateTimeSettings{}, nil
	case DataTypeNumber:
		return NumberSettings{}, nil
	case DataTypeRelatedContent:
		return RelatedContentSettings{}, nil
	case DataTypeRichText:
		return RichTextSettings{ContentType: MediaTypePlainText}, nil
	case DataTypeSelect:
		return SelectSettings{}, nil
	case DataTypeString:
		return StringSettings{}, nil
	case DataTypeTags:
		return TagsSettings{}, nil
	default:
		return nil, &DataTypeNotSupportedError{DataType: dataType}
	}
}

// DecodeSettings reads stored JSON settings of a data type. Empty data
// yields the default settings.
func DecodeSettings(dataType DataType, data []byte) (FieldSettings, error) {
	if len(data) == 0 {
		return DefaultSettings(dataType)
	}

	var (
		settings FieldSettings
		err      error
	)
	switch dataType {
	case DataTypeBoolean:
		settings, err = decodeInto[BooleanSettings](data)
	case DataTypeDateTime:
		settings, err = decodeInto[DateTimeSettings](data)
	case DataTypeNumber:
		settings, err = decodeInto[NumberSettings](data)
	case DataTypeRelatedContent:
		settings, err = decodeInto[RelatedContentSettings](data)
	case DataTypeRichText:
		settings, err = decodeInto[RichTextSettings](data)
	case DataTypeSelect:
		settings, err = decodeInto[SelectSettings](data)
	case DataTypeString:
		settings, err = decodeInto[StringSettings](data)
	case DataTypeTags:
		settings, err = decodeInto[TagsSettings](data)
	default:
		return nil, &DataTypeNotSupportedError{DataType: dataType}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s settings: %w", dataType, err)
	}
	return settings, nil
}

func decodeInto[T FieldSettings](data []byte) (FieldSettings, error) {
	var settings T
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}
