package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/eventstore"
	"example.com/backstage/services/portal/handlers"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Errors []domain.FieldError `json:"errors,omitempty"`
}

// statusOf maps a command or query error to its HTTP status and error code
func statusOf(err error) (int, string) {
	var (
		invalid      *domain.ValidationError
		unknown      *handlers.UnknownCommandError
		notFound     *handlers.NotFoundError
		fieldType    *domain.FieldTypeNotFoundError
		nameTaken    *domain.UniqueNameAlreadyUsedError
		valueTaken   *domain.UniqueValueAlreadyUsedError
		deleted      *domain.AlreadyDeletedError
		notAllowed   *domain.LanguageNotAllowedError
		required     *domain.LanguageRequiredError
		mismatch     *domain.ContentTypeMismatchError
		dataMismatch *domain.DataTypeMismatchError
		unsupported  *domain.DataTypeNotSupportedError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &unknown):
		return http.StatusBadRequest, "invalid"
	case errors.As(err, &notFound), errors.As(err, &fieldType):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, eventstore.ErrConcurrencyConflict):
		return http.StatusConflict, "concurrency_conflict"
	case errors.As(err, &nameTaken), errors.As(err, &valueTaken):
		return http.StatusConflict, "already_used"
	case errors.Is(err, domain.ErrAggregateExists):
		return http.StatusConflict, "already_exists"
	case errors.As(err, &deleted):
		return http.StatusGone, "deleted"
	case errors.As(err, &notAllowed), errors.As(err, &required),
		errors.As(err, &mismatch), errors.As(err, &dataMismatch), errors.As(err, &unsupported):
		return http.StatusUnprocessableEntity, "rejected"
	}
	return http.StatusInternalServerError, "internal"
}

func respondError(c *gin.Context, err error) {
	status, code := statusOf(err)
	response := ErrorResponse{Error: err.Error(), Code: code}

	var invalid *domain.ValidationError
	if errors.As(err, &invalid) {
		response.Errors = invalid.Errors
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		response.Error = "internal error"
	}
	c.AbortWithStatusJSON(status, response)
}
