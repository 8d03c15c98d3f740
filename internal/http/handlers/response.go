// Package handlers implements the gateway and worker HTTP endpoints.
//
// Handlers stay transport-thin: they bind and validate input, call a service
// and translate the outcome into a response. Client errors use the envelope
//
//	{"detail": "...", "code": "...", "trace_id": "..."}
//
// and server errors always answer with the fixed masked body; their detail
// only reaches the request-scoped log.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-testgen-gateway/internal/http/middleware"
)

// ErrorResponse is the client error envelope.
type ErrorResponse struct {
	Detail  string `json:"detail" example:"authentication required"`
	Code    string `json:"code" example:"UNAUTHENTICATED"`
	TraceID string `json:"trace_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// InternalErrorResponse is the only body a 5xx response carries.
type InternalErrorResponse struct {
	Message string `json:"message" example:"Internal Server Error"`
	Code    string `json:"code" example:"INTERNAL_ERROR"`
}

// fail aborts with status. For 5xx the detail is logged and replaced by the
// masked body.
func fail(c *gin.Context, status int, code, detail string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("detail", detail).
			Msg("api error")
		c.AbortWithStatusJSON(status, InternalErrorResponse{Message: "Internal Server Error", Code: ErrCodeInternal})
		return
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Detail:  detail,
		Code:    code,
		TraceID: middleware.TraceIDFrom(c),
	})
}

// Fail is the exported variant of fail for router fallbacks.
func Fail(c *gin.Context, status int, code, detail string) { fail(c, status, code, detail) }

// internal logs err and answers with the masked 500.
func internal(c *gin.Context, err error) {
	middleware.LoggerFrom(c).Error().Err(err).Str("route", c.FullPath()).Msg("request failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, InternalErrorResponse{Message: "Internal Server Error", Code: ErrCodeInternal})
}

func ok(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}
