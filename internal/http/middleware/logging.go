// Package middleware contains the Gin interceptors applied in front of the
// gateway and worker handlers.
//
// This file provides trace id injection, the request-scoped logger and the
// error masker:
//
//   - TraceID() attaches a fresh opaque id to every request and echoes it in
//     X-Trace-ID.
//   - RequestLogger() stores a zerolog.Logger carrying the trace id in the Gin
//     context (key "logger") and in the request context, so services can log
//     with zerolog.Ctx(ctx).
//   - ErrorMasker() turns panics and unhandled handler errors into a fixed 500
//     body. The original message only reaches the logs.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// traceIDKey is the Gin context key under which the trace id is stored.
	traceIDKey = "traceID"
	// TraceIDHeader carries the trace id on every response.
	TraceIDHeader = "X-Trace-ID"
	// loggerKey is the Gin context key of the request-scoped logger.
	loggerKey = "logger"
)

// Body written for every masked failure.
const (
	internalMessage = "Internal Server Error"
	internalCode    = "INTERNAL_ERROR"
)

// TraceID attaches a new trace id per request. Client supplied values are
// ignored so ids stay unique and opaque.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(traceIDKey, id)
		c.Writer.Header().Set(TraceIDHeader, id)
		c.Next()
	}
}

// TraceIDFrom returns the trace id attached by TraceID, or "".
func TraceIDFrom(c *gin.Context) string {
	return c.GetString(traceIDKey)
}

// RequestLogger attaches the request-scoped logger. Place it after TraceID.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		l := log.With().
			Str("trace_id", TraceIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Logger()
		setLogger(c, l)
		c.Next()
	}
}

// setLogger installs l in both the Gin and the request context.
func setLogger(c *gin.Context, l zerolog.Logger) {
	c.Set(loggerKey, &l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
}

// LoggerFrom returns the request-scoped logger, falling back to the global
// logger when none was attached.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// ErrorMasker recovers panics and masks errors recorded with c.Error when the
// handler did not write a response itself.
func ErrorMasker() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				LoggerFrom(c).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				abortInternal(c)
			}
		}()

		c.Next()

		if len(c.Errors) > 0 {
			LoggerFrom(c).Error().Str("errors", c.Errors.String()).Msg("unhandled error")
			if !c.Writer.Written() {
				abortInternal(c)
			}
		}
	}
}

func abortInternal(c *gin.Context) {
	if c.Writer.Written() {
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"message": internalMessage,
		"code":    internalCode,
	})
}
