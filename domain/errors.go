package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError carries every field-level failure of a command
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	messages := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

// Add appends a field error
func (e *ValidationError) Add(field, code, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Code: code, Message: message})
}

// Merge appends the failures of another validation error
func (e *ValidationError) Merge(prefix string, err error) {
	var other *ValidationError
	if !errors.As(err, &other) {
		if err != nil {
			e.Add(prefix, "Invalid", err.Error())
		}
		return
	}
	for _, fe := range other.Errors {
		if prefix != "" {
			fe.Field = prefix + "." + fe.Field
		}
		e.Errors = append(e.Errors, fe)
	}
}

// HasErrors reports whether at least one failure was recorded
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrorOrNil returns nil when nothing failed, so it can be returned directly
func (e *ValidationError) ErrorOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// NewValidationError converts validator failures into a ValidationError.
// field overrides the reported name for single-value validations.
func NewValidationError(field string, err error) *ValidationError {
	result := &ValidationError{}

	var failures validator.ValidationErrors
	if !errors.As(err, &failures) {
		result.Add(field, "Invalid", err.Error())
		return result
	}

	for _, failure := range failures {
		name := failure.Namespace()
		if idx := strings.Index(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		if name == "" {
			name = field
		}
		result.Add(name, failure.Tag(), validationMessage(failure))
	}
	return result
}

func validationMessage(failure validator.FieldError) string {
	switch failure.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + failure.Param() + " characters long"
	case "min":
		return "must be at least " + failure.Param() + " characters long"
	case "unique_name":
		return "may only contain letters, digits and -._@+"
	case "identifier":
		return "must start with a letter or underscore and contain only letters, digits and underscores"
	case "slug":
		return "must be lowercase words separated by hyphens"
	case "locale":
		return "must be a valid locale code"
	default:
		return "failed on the '" + failure.Tag() + "' rule"
	}
}

// AlreadyDeletedError is returned when a deleted aggregate is mutated
type AlreadyDeletedError struct {
	AggregateType string
	ID            StreamID
}

func (e *AlreadyDeletedError) Error() string {
	return fmt.Sprintf("%s %s has been deleted", e.AggregateType, e.ID)
}

// LanguageNotAllowedError is returned when a language is given for an invariant content type
type LanguageNotAllowedError struct {
	ContentTypeID uuid.UUID
	LanguageID    uuid.UUID
}

func (e *LanguageNotAllowedError) Error() string {
	return fmt.Sprintf("content type %s is invariant; language %s is not allowed", e.ContentTypeID, e.LanguageID)
}

// LanguageRequiredError is returned when no language is given for a variant content type
type LanguageRequiredError struct {
	ContentTypeID uuid.UUID
}

func (e *LanguageRequiredError) Error() string {
	return fmt.Sprintf("content type %s is not invariant; a language is required", e.ContentTypeID)
}

// ContentTypeMismatchError is returned when a content is edited through another content type
type ContentTypeMismatchError struct {
	ContentID     uuid.UUID
	Expected      uuid.UUID
	ContentTypeID uuid.UUID
}

func (e *ContentTypeMismatchError) Error() string {
	return fmt.Sprintf("content %s belongs to content type %s, not %s", e.ContentID, e.Expected, e.ContentTypeID)
}

// UniqueNameAlreadyUsedError is returned when a unique name is taken within its scope
type UniqueNameAlreadyUsedError struct {
	Kind       string
	UniqueName string
	ConflictID string
}

func (e *UniqueNameAlreadyUsedError) Error() string {
	if e.ConflictID == "" {
		return fmt.Sprintf("%s unique name %q is already used", e.Kind, e.UniqueName)
	}
	return fmt.Sprintf("%s unique name %q is already used by %s", e.Kind, e.UniqueName, e.ConflictID)
}

// UniqueValueAlreadyUsedError is returned when a unique field value is taken within its scope
type UniqueValueAlreadyUsedError struct {
	FieldDefinitionID uuid.UUID
	FieldName         string
	Value             string
	ContentID         string
}

func (e *UniqueValueAlreadyUsedError) Error() string {
	return fmt.Sprintf("value %q of field %s is already used by content %s", e.Value, e.FieldName, e.ContentID)
}

// DataTypeMismatchError is returned when settings of another data type are applied to a field type
type DataTypeMismatchError struct {
	FieldTypeID uuid.UUID
	Expected    DataType
	Actual      DataType
}

func (e *DataTypeMismatchError) Error() string {
	return fmt.Sprintf("field type %s has data type %s; %s settings cannot be applied", e.FieldTypeID, e.Expected, e.Actual)
}

// DataTypeNotSupportedError is returned when a component has no behavior for a data type
type DataTypeNotSupportedError struct {
	DataType DataType
}

func (e *DataTypeNotSupportedError) Error() string {
	return fmt.Sprintf("data type %q is not supported", string(e.DataType))
}

// FieldTypeNotFoundError is returned when a field definition references an unknown field type
type FieldTypeNotFoundError struct {
	FieldTypeID uuid.UUID
	Field       string
}

func (e *FieldTypeNotFoundError) Error() string {
	return fmt.Sprintf("field type %s referenced by %s was not found", e.FieldTypeID, e.Field)
}
