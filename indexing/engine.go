package indexing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
	"example.com/backstage/services/portal/repositories"
)

// Engine derives the field and unique index rows of content locales
type Engine struct {
	indices repositories.IndexRepository
}

// NewEngine creates an indexing engine over the index repository
func NewEngine(indices repositories.IndexRepository) *Engine {
	return &Engine{indices: indices}
}

// snapshot is one status of a locale: its draft or its published values
type snapshot struct {
	status   string
	revision int64
	values   map[uuid.UUID]string
}

func snapshotsOf(locale *models.ContentLocale) ([]snapshot, error) {
	draft, err := models.DecodeFieldValues(locale.FieldValues)
	if err != nil {
		return nil, fmt.Errorf("failed to decode field values: %w", err)
	}
	snapshots := []snapshot{{status: models.StatusLatest, revision: locale.Revision, values: draft}}

	published := snapshot{status: models.StatusPublished}
	if locale.IsPublished {
		values, err := models.DecodeFieldValues(locale.PublishedFieldValues)
		if err != nil {
			return nil, fmt.Errorf("failed to decode published field values: %w", err)
		}
		published.values = values
		published.revision = lo.FromPtr(locale.PublishedRevision)
	}
	return append(snapshots, published), nil
}

// IndexLocale recomputes the draft and published rows of one locale and
// replaces the stored rows. An unpublished locale ends with no published rows.
func (e *Engine) IndexLocale(ctx context.Context, contentType *models.ContentType, locale *models.ContentLocale) error {
	snapshots, err := snapshotsOf(locale)
	if err != nil {
		return err
	}

	for _, snap := range snapshots {
		fieldRows, uniqueRows, err := e.buildRows(contentType, locale, snap)
		if err != nil {
			return err
		}

		uniqueRows, err = e.withoutTakenKeys(ctx, locale.ContentID, uniqueRows)
		if err != nil {
			return err
		}

		if err := e.indices.ReplaceFieldIndices(ctx, locale.ContentID, locale.LanguageKey, snap.status, fieldRows); err != nil {
			return fmt.Errorf("failed to replace field indices: %w", err)
		}
		if err := e.indices.ReplaceUniqueIndices(ctx, locale.ContentID, locale.LanguageKey, snap.status, uniqueRows); err != nil {
			return fmt.Errorf("failed to replace unique indices: %w", err)
		}
	}
	return nil
}

func (e *Engine) buildRows(contentType *models.ContentType, locale *models.ContentLocale, snap snapshot) ([]models.FieldIndex, []models.UniqueIndex, error) {
	var fieldRows []models.FieldIndex
	var uniqueRows []models.UniqueIndex
	scope := ScopeKey(contentType.RealmKey, contentType.ContentTypeID, locale.LanguageKey, snap.status)

	for _, field := range contentType.Fields {
		if !field.IsIndexed && !field.IsUnique {
			continue
		}
		value, ok := snap.values[field.FieldDefinitionID]
		if !ok {
			continue
		}

		row := models.FieldIndex{
			RealmKey:          contentType.RealmKey,
			ContentTypeID:     contentType.ContentTypeID,
			LanguageID:        locale.LanguageID,
			LanguageKey:       locale.LanguageKey,
			FieldDefinitionID: field.FieldDefinitionID,
			FieldName:         field.UniqueName,
			ContentID:         locale.ContentID,
			Status:            snap.status,
			Revision:          snap.revision,
		}
		if err := Coerce(&row, domain.DataType(field.DataType), value); err != nil {
			var unsupported *domain.DataTypeNotSupportedError
			if errors.As(err, &unsupported) {
				return nil, nil, err
			}
			log.Warn().
				Err(err).
				Str("content_id", locale.ContentID.String()).
				Str("field", field.UniqueName).
				Msg("Skipping field value that cannot be indexed")
			continue
		}

		if field.IsIndexed {
			fieldRows = append(fieldRows, row)
		}
		if field.IsUnique && row.Normalized != "" {
			uniqueRows = append(uniqueRows, models.UniqueIndex{
				ScopeKey:          scope,
				Key:               UniqueKey(field.FieldDefinitionID, row.Normalized),
				RealmKey:          contentType.RealmKey,
				ContentTypeID:     contentType.ContentTypeID,
				LanguageID:        locale.LanguageID,
				LanguageKey:       locale.LanguageKey,
				FieldDefinitionID: field.FieldDefinitionID,
				ContentID:         locale.ContentID,
				Status:            snap.status,
				Revision:          snap.revision,
				Value:             Truncate(value),
				Normalized:        row.Normalized,
			})
		}
	}
	return fieldRows, uniqueRows, nil
}

// withoutTakenKeys drops unique rows whose key another content already holds
func (e *Engine) withoutTakenKeys(ctx context.Context, contentID uuid.UUID, rows []models.UniqueIndex) ([]models.UniqueIndex, error) {
	if len(rows) == 0 {
		return rows, nil
	}

	keys := lo.Map(rows, func(row models.UniqueIndex, _ int) string { return row.Key })
	existing, err := e.indices.FindUniqueIndices(ctx, rows[0].ScopeKey, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to find unique indices: %w", err)
	}
	holders := lo.SliceToMap(existing, func(row models.UniqueIndex) (string, uuid.UUID) {
		return row.Key, row.ContentID
	})

	return lo.Filter(rows, func(row models.UniqueIndex, _ int) bool {
		holder, taken := holders[row.Key]
		if taken && holder != contentID {
			log.Warn().
				Str("content_id", contentID.String()).
				Str("holder_id", holder.String()).
				Str("value", row.Value).
				Msg("Unique value already held by another content, skipping index row")
			return false
		}
		return true
	}), nil
}

// RemoveLocale deletes every row of one locale
func (e *Engine) RemoveLocale(ctx context.Context, contentID uuid.UUID, languageKey string) error {
	return e.indices.DeleteByContent(ctx, contentID, &languageKey)
}

// RemoveContent deletes every row of a content
func (e *Engine) RemoveContent(ctx context.Context, contentID uuid.UUID) error {
	return e.indices.DeleteByContent(ctx, contentID, nil)
}

// RemoveField deletes every row of a field definition
func (e *Engine) RemoveField(ctx context.Context, fieldDefinitionID uuid.UUID) error {
	return e.indices.DeleteByField(ctx, fieldDefinitionID)
}

// ReindexContentType recomputes the rows of every locale of the given contents,
// after the indexed or unique flags of the content type changed
func (e *Engine) ReindexContentType(ctx context.Context, contentType *models.ContentType, contents []models.Content) error {
	for i := range contents {
		for j := range contents[i].Locales {
			if err := e.IndexLocale(ctx, contentType, &contents[i].Locales[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckUniqueness returns a *domain.UniqueValueAlreadyUsedError when one of
// values is held by another content in the scope of the given status
func (e *Engine) CheckUniqueness(ctx context.Context, contentType *models.ContentType, contentID uuid.UUID, languageID *uuid.UUID, status string, values map[uuid.UUID]string) error {
	scope := ScopeKey(contentType.RealmKey, contentType.ContentTypeID, models.LanguageKeyOf(languageID), status)

	byKey := map[string]models.FieldDefinition{}
	raw := map[string]string{}
	for _, field := range contentType.Fields {
		value, ok := values[field.FieldDefinitionID]
		if !field.IsUnique || !ok {
			continue
		}
		row := models.FieldIndex{}
		if err := Coerce(&row, domain.DataType(field.DataType), value); err != nil {
			var unsupported *domain.DataTypeNotSupportedError
			if errors.As(err, &unsupported) {
				return err
			}
			continue
		}
		if row.Normalized == "" {
			continue
		}
		key := UniqueKey(field.FieldDefinitionID, row.Normalized)
		byKey[key] = field
		raw[key] = value
	}
	if len(byKey) == 0 {
		return nil
	}

	existing, err := e.indices.FindUniqueIndices(ctx, scope, lo.Keys(byKey))
	if err != nil {
		return fmt.Errorf("failed to find unique indices: %w", err)
	}
	for _, row := range existing {
		if row.ContentID == contentID {
			continue
		}
		field := byKey[row.Key]
		return &domain.UniqueValueAlreadyUsedError{
			FieldDefinitionID: field.FieldDefinitionID,
			FieldName:         field.UniqueName,
			Value:             raw[row.Key],
			ContentID:         row.ContentID.String(),
		}
	}
	return nil
}
