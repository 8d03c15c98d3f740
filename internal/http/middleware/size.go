package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SizeGuard rejects requests whose declared Content-Length exceeds maxBytes
// with 413 and caps the body reader for requests without one.
func SizeGuard(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"detail": "request body too large",
				"code":   "PAYLOAD_TOO_LARGE",
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
