package validation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
	"example.com/backstage/services/portal/repositories"
)

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }
func stringPtr(v string) *string { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func TestValidateValue(t *testing.T) {
	selectSettings := domain.SelectSettings{Options: []domain.SelectOption{
		{Text: "Red"},
		{Text: "Blue", Value: stringPtr("blue")},
		{Text: "Green", IsDisabled: true},
	}}
	multiSelect := selectSettings
	multiSelect.IsMultiple = true

	tests := []struct {
		name     string
		settings domain.FieldSettings
		value    string
		valid    bool
	}{
		{"boolean", domain.BooleanSettings{}, "false", true},
		{"boolean garbage", domain.BooleanSettings{}, "maybe", false},
		{"date time", domain.DateTimeSettings{}, "2024-01-02T03:04:05Z", true},
		{"date time before minimum", domain.DateTimeSettings{MinimumValue: timePtr(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))}, "2024-01-02T03:04:05Z", false},
		{"date time not rfc3339", domain.DateTimeSettings{}, "01/02/2024", false},
		{"number in bounds", domain.NumberSettings{MinimumValue: floatPtr(0), MaximumValue: floatPtr(10)}, "5", true},
		{"number above maximum", domain.NumberSettings{MaximumValue: floatPtr(10)}, "11", false},
		{"number on step", domain.NumberSettings{MinimumValue: floatPtr(1), Step: floatPtr(0.5)}, "2.5", true},
		{"number off step", domain.NumberSettings{Step: floatPtr(0.5)}, "0.3", false},
		{"string length", domain.StringSettings{MinimumLength: intPtr(2), MaximumLength: intPtr(4)}, "héé", true},
		{"string too long", domain.StringSettings{MaximumLength: intPtr(2)}, "abc", false},
		{"string pattern", domain.StringSettings{Pattern: stringPtr(`^[a-z]+$`)}, "Abc", false},
		{"rich text", domain.RichTextSettings{ContentType: domain.MediaTypeMarkdown, MinimumLength: intPtr(1)}, "", false},
		{"select", selectSettings, "blue", true},
		{"select disabled option", selectSettings, "Green", false},
		{"select multiple", multiSelect, `["Red","blue"]`, true},
		{"select multiple not array", multiSelect, "Red", false},
		{"related content", domain.RelatedContentSettings{ContentTypeID: uuid.New()}, uuid.NewString(), true},
		{"related contents", domain.RelatedContentSettings{ContentTypeID: uuid.New(), IsMultiple: true}, `["` + uuid.NewString() + `"]`, true},
		{"related content not an id", domain.RelatedContentSettings{ContentTypeID: uuid.New()}, "abc", false},
		{"tags", domain.TagsSettings{}, `["go","cms"]`, true},
		{"empty tag", domain.TagsSettings{}, `["go"," "]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateValue(tt.settings, tt.value)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func saveFieldType(t *testing.T, repo repositories.FieldTypeRepository, settings domain.FieldSettings) uuid.UUID {
	t.Helper()
	raw, err := json.Marshal(settings)
	require.NoError(t, err)
	id := uuid.New()
	require.NoError(t, repo.Save(context.Background(), &models.FieldType{
		FieldTypeID: id,
		UniqueName:  string(settings.DataType()),
		DataType:    string(settings.DataType()),
		Settings:    raw,
	}))
	return id
}

func TestValidateFieldValues(t *testing.T) {
	ctx := context.Background()
	repos := repositories.NewMemoryRepositories()
	shortText := saveFieldType(t, repos.FieldTypes, domain.StringSettings{MaximumLength: intPtr(5)})
	number := saveFieldType(t, repos.FieldTypes, domain.NumberSettings{})

	contentType := domain.NewContentTypeAggregate(domain.GlobalStreamID(uuid.New()))
	require.NoError(t, contentType.Create("Article", false, ""))
	title := domain.FieldDefinition{ID: uuid.New(), FieldTypeID: shortText, UniqueName: "Title"}
	views := domain.FieldDefinition{ID: uuid.New(), FieldTypeID: number, UniqueName: "Views"}
	require.NoError(t, contentType.SetField(title, ""))
	require.NoError(t, contentType.SetField(views, ""))

	validator := New(repos.FieldTypes)
	require.NoError(t, validator.ValidateFieldValues(ctx, contentType, map[uuid.UUID]string{title.ID: "Hi", views.ID: "3"}))

	unknown := uuid.New()
	err := validator.ValidateFieldValues(ctx, contentType, map[uuid.UUID]string{
		title.ID: "Too long",
		views.ID: "three",
		unknown:  "x",
	})

	var invalid *domain.ValidationError
	require.ErrorAs(t, err, &invalid)
	fields := make([]string, 0, len(invalid.Errors))
	for _, fe := range invalid.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"FieldValues.Title", "FieldValues.Views", "FieldValues." + unknown.String()}, fields)
}

func TestValidateFieldValuesWithMissingFieldType(t *testing.T) {
	repos := repositories.NewMemoryRepositories()
	contentType := domain.NewContentTypeAggregate(domain.GlobalStreamID(uuid.New()))
	require.NoError(t, contentType.Create("Article", true, ""))
	field := domain.FieldDefinition{ID: uuid.New(), FieldTypeID: uuid.New(), UniqueName: "Title"}
	require.NoError(t, contentType.SetField(field, ""))

	err := New(repos.FieldTypes).ValidateFieldValues(context.Background(), contentType, map[uuid.UUID]string{field.ID: "x"})

	var notFound *domain.FieldTypeNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestValidateRequired(t *testing.T) {
	contentType := domain.NewContentTypeAggregate(domain.GlobalStreamID(uuid.New()))
	require.NoError(t, contentType.Create("Article", false, ""))
	sku := domain.FieldDefinition{ID: uuid.New(), FieldTypeID: uuid.New(), UniqueName: "Sku", IsInvariant: true, IsRequired: true}
	title := domain.FieldDefinition{ID: uuid.New(), FieldTypeID: uuid.New(), UniqueName: "Title", IsRequired: true}
	require.NoError(t, contentType.SetField(sku, ""))
	require.NoError(t, contentType.SetField(title, ""))

	assert.NoError(t, ValidateRequired(contentType, map[uuid.UUID]string{sku.ID: "A-1"}, true))
	assert.NoError(t, ValidateRequired(contentType, map[uuid.UUID]string{title.ID: "Hello"}, false))

	err := ValidateRequired(contentType, map[uuid.UUID]string{title.ID: "  "}, false)
	var invalid *domain.ValidationError
	require.ErrorAs(t, err, &invalid)
	require.Len(t, invalid.Errors, 1)
	assert.Equal(t, "FieldValues.Title", invalid.Errors[0].Field)
	assert.Equal(t, "required", invalid.Errors[0].Code)
}
