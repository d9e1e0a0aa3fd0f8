package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestCreateFieldTypeRecordsDataTypeAndSettings(t *testing.T) {
	fieldType := NewFieldTypeAggregate(GlobalStreamID(uuid.New()))

	err := fieldType.Create("ArticleTitle", StringSettings{MaximumLength: intPtr(100)}, "admin")

	require.NoError(t, err)
	require.Equal(t, DataTypeString, fieldType.DataType)
	require.Equal(t, StringSettings{MaximumLength: intPtr(100)}, fieldType.Settings)
	events := fieldType.GetEvents()
	require.Len(t, events, 2)
	require.Equal(t, FieldTypeCreated, events[0].Type)
	require.Equal(t, FieldTypeStringSettingsChanged, events[1].Type)
}

func TestFieldTypeSettingsMustMatchDataType(t *testing.T) {
	fieldType := NewFieldTypeAggregate(GlobalStreamID(uuid.New()))
	require.NoError(t, fieldType.Create("Published", BooleanSettings{}, ""))

	err := fieldType.SetNumberSettings(NumberSettings{}, "")

	var mismatch *DataTypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, DataTypeBoolean, mismatch.Expected)
	require.Equal(t, DataTypeNumber, mismatch.Actual)
}

func TestFieldTypeSettingsValidation(t *testing.T) {
	pattern := "("
	minimum, maximum, step := 10.0, 1.0, 0.0

	cases := []struct {
		name     string
		settings FieldSettings
		field    string
	}{
		{"string bounds", StringSettings{MinimumLength: intPtr(5), MaximumLength: intPtr(2)}, "MaximumLength"},
		{"string pattern", StringSettings{Pattern: &pattern}, "Pattern"},
		{"number bounds", NumberSettings{MinimumValue: &minimum, MaximumValue: &maximum}, "MaximumValue"},
		{"number step", NumberSettings{Step: &step}, "Step"},
		{"related content", RelatedContentSettings{}, "ContentTypeID"},
		{"rich text media type", RichTextSettings{ContentType: "application/pdf"}, "ContentType"},
		{"select text", SelectSettings{Options: []SelectOption{{Text: " "}}}, "Options[0].Text"},
		{"select duplicates", SelectSettings{Options: []SelectOption{{Text: "A"}, {Text: "A"}}}, "Options"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fieldType := NewFieldTypeAggregate(GlobalStreamID(uuid.New()))
			err := fieldType.Create("Field", tc.settings, "")

			var invalid *ValidationError
			require.ErrorAs(t, err, &invalid)
			require.Equal(t, tc.field, invalid.Errors[0].Field)
			require.Equal(t, 0, fieldType.GetVersion())
		})
	}
}

func TestFieldTypeReplayRoundTrip(t *testing.T) {
	fieldType := NewFieldTypeAggregate(GlobalStreamID(uuid.New()))
	value := "draft"
	require.NoError(t, fieldType.Create("Status", SelectSettings{Options: []SelectOption{{Text: "Draft", Value: &value}}}, ""))
	require.NoError(t, fieldType.SetSelectSettings(SelectSettings{IsMultiple: true, Options: []SelectOption{{Text: "Live"}}}, ""))

	replayed := NewFieldTypeAggregate(fieldType.GetID())
	require.NoError(t, replayed.LoadFromHistory(fieldType.GetEvents()))

	require.Equal(t, fieldType.Settings, replayed.Settings)
	require.Equal(t, DataTypeSelect, replayed.DataType)
	require.Equal(t, 3, replayed.GetVersion())
}

func TestParseDataType(t *testing.T) {
	dataType, err := ParseDataType("richtext")
	require.NoError(t, err)
	require.Equal(t, DataTypeRichText, dataType)

	_, err = ParseDataType("Geolocation")
	var unsupported *DataTypeNotSupportedError
	require.ErrorAs(t, err, &unsupported)
}
