package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-testgen-gateway/internal/sysutil"
)

// TesterHeader carries the internal tester secret.
const TesterHeader = "X-Internal-Secret"

const testerKey = "tester"

// TesterBypass marks requests presenting the tester secret. Marked requests
// skip CAPTCHA and rate limiting. An empty secret disables the bypass.
func TesterBypass(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" && sysutil.SecretEqual(c.GetHeader(TesterHeader), secret) {
			c.Set(testerKey, true)
		}
		c.Next()
	}
}

// IsTester reports whether TesterBypass marked the request.
func IsTester(c *gin.Context) bool {
	return c.GetBool(testerKey)
}
