package rest

import (
	"errors"
	"net/http"

	"github.com/dfryer1193/gocatalog/api"
	"github.com/dfryer1193/gocatalog/catalog/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrOwnershipMismatch, http.StatusConflict, "ownership_mismatch"},
	{domain.ErrDuplicateImage, http.StatusConflict, "duplicate_image"},
	{domain.ErrEmptyFile, http.StatusBadRequest, "empty_file"},
	{domain.ErrInvalidName, http.StatusBadRequest, "invalid_name"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrFetch, http.StatusBadGateway, "fetch_failed"},
	{domain.ErrStorage, http.StatusInternalServerError, "storage_error"},
	{domain.ErrPersistence, http.StatusInternalServerError, "persistence_error"},
}

func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError writes the error body for err. Server-side failures are
// logged and their details are not sent to the client.
func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		log.Ctx(c.Request.Context()).Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Request failed")
		message = http.StatusText(status)
	}

	c.AbortWithStatusJSON(status, api.ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
	})
}

func invalidInput(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(c, err)
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{
		Code:    "invalid_input",
		Message: err.Error(),
		Status:  http.StatusBadRequest,
	})
}
