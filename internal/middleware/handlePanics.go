package middleware

import (
	"fmt"
	"net/http"

	"github.com/dfryer1193/gocatalog/api"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HandlePanics logs a recovered panic and answers with a generic 500 body.
func HandlePanics() gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		err, ok := recovered.(error)
		if !ok {
			err = fmt.Errorf("%v", recovered)
		}

		log.Ctx(c.Request.Context()).Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Recovered from panic")

		c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{
			Code:    "internal_error",
			Message: "internal server error",
			Status:  http.StatusInternalServerError,
		})
	}
}
