package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-testgen-gateway/internal/captcha"
)

// CaptchaVerifier checks a CAPTCHA token.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Captcha reads turnstile_token from the JSON body and verifies it. The body
// is restored for the handler. Only captcha.ErrRejected blocks; the verifier
// itself fails open on outages.
func Captcha(v CaptchaVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsTester(c) {
			c.Next()
			return
		}

		var token string
		if c.Request.Body != nil {
			raw, err := io.ReadAll(c.Request.Body)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
						"detail": "request body too large", "code": "PAYLOAD_TOO_LARGE", "trace_id": TraceIDFrom(c),
					})
					return
				}
				_ = c.Error(err)
				c.Abort()
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			var probe struct {
				TurnstileToken string `json:"turnstile_token"`
			}
			_ = json.Unmarshal(raw, &probe)
			token = probe.TurnstileToken
		}

		if err := v.Verify(c.Request.Context(), token, c.ClientIP()); errors.Is(err, captcha.ErrRejected) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"detail":   "captcha verification failed",
				"code":     "CAPTCHA_FAILED",
				"trace_id": TraceIDFrom(c),
			})
			return
		}
		c.Next()
	}
}
