package indexing

import (
	"encoding/base32"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
)

// MaxValueLength is the number of runes kept for an indexed value
const MaxValueLength = domain.MaxLength

var (
	folder   = cases.Fold()
	encoding = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// Normalize is the comparison form of an indexed value: Unicode case
// folded with runs of whitespace collapsed to one space.
func Normalize(value string) string {
	return Truncate(strings.Join(strings.Fields(folder.String(value)), " "))
}

// Truncate keeps the first MaxValueLength runes of value
func Truncate(value string) string {
	if utf8.RuneCountInString(value) <= MaxValueLength {
		return value
	}
	runes := []rune(value)
	return string(runes[:MaxValueLength])
}

// UniqueKey is the key of a unique value within its scope
func UniqueKey(fieldDefinitionID uuid.UUID, normalized string) string {
	return encoding.EncodeToString(fieldDefinitionID[:]) + "|" + normalized
}

// ScopeKey identifies the rows competing for unique values: one realm,
// content type, language and status
func ScopeKey(realmKey *string, contentTypeID uuid.UUID, languageKey, status string) string {
	realm := ""
	if realmKey != nil {
		realm = *realmKey
	}
	return strings.Join([]string{realm, contentTypeID.String(), languageKey, status}, "|")
}

// Coerce stores value in the column of its data type
func Coerce(row *models.FieldIndex, dataType domain.DataType, value string) error {
	row.DataType = string(dataType)
	switch dataType {
	case domain.DataTypeBoolean:
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		row.Boolean = &parsed
		row.Normalized = strconv.FormatBool(parsed)
	case domain.DataTypeDateTime:
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
		if err != nil {
			return err
		}
		parsed = parsed.UTC()
		row.DateTime = &parsed
		row.Normalized = parsed.Format(time.RFC3339)
	case domain.DataTypeNumber:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return err
		}
		row.Number = &parsed
		row.Normalized = strconv.FormatFloat(parsed, 'f', -1, 64)
	case domain.DataTypeString, domain.DataTypeRichText, domain.DataTypeSelect,
		domain.DataTypeTags, domain.DataTypeRelatedContent:
		truncated := Truncate(value)
		row.String = &truncated
		row.Normalized = Normalize(value)
	default:
		return &domain.DataTypeNotSupportedError{DataType: dataType}
	}
	return nil
}
