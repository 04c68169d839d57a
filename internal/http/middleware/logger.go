package middleware

import (
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pablopda/linux-speech-tools/internal/config"
)

// TraceIDKey is the gin context key holding the request trace id.
const TraceIDKey = "trace_id"

// access logger, lazily initialized
var (
	logger      zerolog.Logger
	initialized bool
)

// InitZerologWithConfig configures the access logger from the log section.
func InitZerologWithConfig(logConfig *config.LogConfig) {
	logger = NewZerolog(os.Stdout, logConfig)
	initialized = true
}

// NewZerolog builds a zerolog logger writing to w: JSON when the format is
// "json", console output otherwise.
func NewZerolog(w io.Writer, logConfig *config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(logConfig.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if logConfig.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func initZerolog() {
	output := zerolog.ConsoleWriter{Out: os.Stdout}
	logger = zerolog.New(output).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	initialized = true
}

// AccessLogger returns the access logger, initializing it with defaults on
// first use.
func AccessLogger() zerolog.Logger {
	if !initialized {
		initZerolog()
	}
	return logger
}

// TraceID returns the trace id of the request, or "unknown".
func TraceID(c *gin.Context) string {
	if v, ok := c.Get(TraceIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}

// Logger assigns every request a trace id and logs it once it completes.
// An incoming X-Request-ID header is reused as the trace id.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		traceID := c.GetHeader("X-Request-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set(TraceIDKey, traceID)
		c.Header("X-Request-ID", traceID)

		c.Next()

		log := AccessLogger()
		event := log.Info().
			Str("trace_id", traceID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("ip", c.ClientIP()).
			Int("status", c.Writer.Status()).
			Int("size", c.Writer.Size()).
			Dur("duration", time.Since(start)).
			Str("user_agent", c.Request.UserAgent())

		if len(c.Errors) > 0 {
			event.Err(c.Errors.Last()).Msg("request completed with errors")
		} else {
			event.Msg("request completed")
		}
	}
}
