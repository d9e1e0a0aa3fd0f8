package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/handlers"
	"example.com/backstage/services/portal/models"
)

// FieldTypeResponse is a field type with its settings as JSON
type FieldTypeResponse struct {
	*models.FieldType
	Settings json.RawMessage `json:"settings"`
}

// LocaleResponse is a content locale with decoded field values
type LocaleResponse struct {
	*models.ContentLocale
	FieldValues          map[uuid.UUID]string `json:"field_values"`
	PublishedFieldValues map[uuid.UUID]string `json:"published_field_values,omitempty"`
}

// ContentResponse is a content with decoded locales
type ContentResponse struct {
	*models.Content
	Locales []LocaleResponse `json:"locales"`
}

// IndicesResponse lists the index rows of a content
type IndicesResponse struct {
	Fields  []models.FieldIndex  `json:"fields"`
	Uniques []models.UniqueIndex `json:"uniques"`
}

// realmScope reads the optional realm_id query parameter. No realm means
// the global scope.
func realmScope(c *gin.Context) (*string, bool) {
	value := c.Query("realm_id")
	if value == "" {
		return nil, true
	}
	id, err := uuid.Parse(value)
	if err != nil {
		respondError(c, domain.NewValidationError("realm_id", errors.New("must be a UUID")))
		return nil, false
	}
	key := id.String()
	return &key, true
}

func idParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, domain.NewValidationError("id", errors.New("must be a UUID")))
		return uuid.Nil, false
	}
	return id, true
}

// found responds 404 for a missing or deleted row
func found[T any](c *gin.Context, kind string, id uuid.UUID, row *T, deleted func(*T) bool) bool {
	if row == nil || deleted(row) {
		respondError(c, &handlers.NotFoundError{Kind: kind, ID: id.String()})
		return false
	}
	return true
}

func (s *Server) listRealms(c *gin.Context) {
	realms, err := s.deps.Repositories.Realms.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, realms)
}

func (s *Server) getRealm(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	realm, err := s.deps.Repositories.Realms.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found(c, domain.RealmAggregateType, id, realm, func(r *models.Realm) bool { return r.IsDeleted }) {
		return
	}
	c.JSON(http.StatusOK, realm)
}

func (s *Server) listLanguages(c *gin.Context) {
	realmKey, ok := realmScope(c)
	if !ok {
		return
	}
	languages, err := s.deps.Repositories.Languages.List(c.Request.Context(), realmKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, languages)
}

func (s *Server) listFieldTypes(c *gin.Context) {
	realmKey, ok := realmScope(c)
	if !ok {
		return
	}
	fieldTypes, err := s.deps.Repositories.FieldTypes.List(c.Request.Context(), realmKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(fieldTypes, func(fieldType models.FieldType, _ int) FieldTypeResponse {
		return newFieldTypeResponse(&fieldType)
	}))
}

func (s *Server) getFieldType(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	fieldType, err := s.deps.Repositories.FieldTypes.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found(c, domain.FieldTypeAggregateType, id, fieldType, func(f *models.FieldType) bool { return f.IsDeleted }) {
		return
	}
	c.JSON(http.StatusOK, newFieldTypeResponse(fieldType))
}

func (s *Server) listContentTypes(c *gin.Context) {
	realmKey, ok := realmScope(c)
	if !ok {
		return
	}
	contentTypes, err := s.deps.Repositories.ContentTypes.List(c.Request.Context(), realmKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contentTypes)
}

func (s *Server) getContentType(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	contentType, err := s.deps.Repositories.ContentTypes.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found(c, domain.ContentTypeAggregateType, id, contentType, func(ct *models.ContentType) bool { return ct.IsDeleted }) {
		return
	}
	c.JSON(http.StatusOK, contentType)
}

func (s *Server) listContents(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	contents, err := s.deps.Repositories.Contents.FindByContentType(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	responses := make([]ContentResponse, 0, len(contents))
	for i := range contents {
		if contents[i].IsDeleted {
			continue
		}
		response, err := newContentResponse(&contents[i])
		if err != nil {
			respondError(c, err)
			return
		}
		responses = append(responses, response)
	}
	c.JSON(http.StatusOK, responses)
}

func (s *Server) getContent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	content, err := s.deps.Repositories.Contents.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found(c, domain.ContentAggregateType, id, content, func(row *models.Content) bool { return row.IsDeleted }) {
		return
	}
	response, err := newContentResponse(content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) getContentIndices(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	fields, err := s.deps.Repositories.Indices.ListFieldIndices(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	uniques, err := s.deps.Repositories.Indices.ListUniqueIndices(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, IndicesResponse{Fields: fields, Uniques: uniques})
}

func newFieldTypeResponse(fieldType *models.FieldType) FieldTypeResponse {
	settings := json.RawMessage(fieldType.Settings)
	if len(settings) == 0 {
		settings = json.RawMessage("{}")
	}
	return FieldTypeResponse{FieldType: fieldType, Settings: settings}
}

func newContentResponse(content *models.Content) (ContentResponse, error) {
	locales := make([]LocaleResponse, 0, len(content.Locales))
	for i := range content.Locales {
		locale := &content.Locales[i]
		values, err := models.DecodeFieldValues(locale.FieldValues)
		if err != nil {
			return ContentResponse{}, err
		}
		response := LocaleResponse{ContentLocale: locale, FieldValues: values}
		if locale.IsPublished {
			if response.PublishedFieldValues, err = models.DecodeFieldValues(locale.PublishedFieldValues); err != nil {
				return ContentResponse{}, err
			}
		}
		locales = append(locales, response)
	}
	return ContentResponse{Content: content, Locales: locales}, nil
}
