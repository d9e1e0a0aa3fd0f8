package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/repositories"
)

// Validator checks content field values against the settings of their
// field types, read from the projection
type Validator struct {
	fieldTypes repositories.FieldTypeRepository
}

// New creates a field value validator
func New(fieldTypes repositories.FieldTypeRepository) *Validator {
	return &Validator{fieldTypes: fieldTypes}
}

func fieldKey(name string) string {
	return "FieldValues." + name
}

// ValidateFieldValues reports every value that breaks its field type settings
// and every value keyed by an id the content type does not define
func (v *Validator) ValidateFieldValues(ctx context.Context, contentType *domain.ContentType, values map[uuid.UUID]string) error {
	errs := &domain.ValidationError{}
	settingsByType := map[uuid.UUID]domain.FieldSettings{}

	ids := make([]uuid.UUID, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		field, ok := contentType.FindField(id)
		if !ok {
			errs.Add(fieldKey(id.String()), "unknown", "is not a field of the content type")
			continue
		}

		settings, ok := settingsByType[field.FieldTypeID]
		if !ok {
			var err error
			if settings, err = v.settingsOf(ctx, field); err != nil {
				return err
			}
			settingsByType[field.FieldTypeID] = settings
		}

		if err := ValidateValue(settings, values[id]); err != nil {
			errs.Add(fieldKey(field.UniqueName.String()), "invalid", err.Error())
		}
	}
	return errs.ErrorOrNil()
}

func (v *Validator) settingsOf(ctx context.Context, field domain.FieldDefinition) (domain.FieldSettings, error) {
	row, err := v.fieldTypes.FindByID(ctx, field.FieldTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to find field type: %w", err)
	}
	if row == nil || row.IsDeleted {
		return nil, &domain.FieldTypeNotFoundError{FieldTypeID: field.FieldTypeID, Field: field.UniqueName.String()}
	}
	return domain.DecodeSettings(domain.DataType(row.DataType), row.Settings)
}

// ValidateRequired reports required fields missing from a locale about to be
// published. The invariant locale holds the invariant fields; a language
// locale holds the others.
func ValidateRequired(contentType *domain.ContentType, values map[uuid.UUID]string, invariant bool) error {
	errs := &domain.ValidationError{}
	for _, field := range contentType.Fields {
		if !field.IsRequired {
			continue
		}
		onInvariantSide := contentType.IsInvariant || field.IsInvariant
		if onInvariantSide != invariant {
			continue
		}
		if strings.TrimSpace(values[field.ID]) == "" {
			errs.Add(fieldKey(field.UniqueName.String()), "required", "is required")
		}
	}
	return errs.ErrorOrNil()
}
