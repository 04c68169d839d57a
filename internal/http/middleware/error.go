package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	custom_errors "github.com/pablopda/linux-speech-tools/internal/errors"
)

// ErrorHandler turns the last error a handler attached with c.Error into a
// JSON response, mapping sentinel errors to status codes.
func ErrorHandler(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		traceID := TraceID(c)

		status, msg := StatusFor(err)
		event := logger.Error()
		if status < http.StatusInternalServerError {
			event = logger.Warn()
		}
		event.Str("trace_id", traceID).Int("status", status).Err(err).Msg("request failed")

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(status, gin.H{"error": msg, "trace_id": traceID})
		}
	}
}

// StatusFor maps an error to an HTTP status and the message shown to the
// client. Client errors keep their text; server errors are generic.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, custom_errors.ErrInvalidInput),
		errors.Is(err, custom_errors.ErrInvalidConfiguration):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, custom_errors.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, custom_errors.ErrRateLimited):
		return http.StatusTooManyRequests, "upstream rate limit exceeded"
	case errors.Is(err, custom_errors.ErrUpstreamServiceFailed):
		return http.StatusBadGateway, "upstream service failed"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
