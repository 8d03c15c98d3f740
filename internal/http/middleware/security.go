package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ContentSecurityPolicy is sent on every response. It allows the first-party
// origin plus the Google, identity provider and Turnstile hosts the frontend
// loads from.
const ContentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' https://www.googletagmanager.com https://www.google-analytics.com https://accounts.google.com https://challenges.cloudflare.com https://apis.google.com; " +
	"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com https://accounts.google.com; " +
	"font-src 'self' https://fonts.gstatic.com; " +
	"img-src 'self' data: https://*.googleusercontent.com https://www.google-analytics.com https://www.googletagmanager.com; " +
	"connect-src 'self' https://*.supabase.co wss://*.supabase.co https://www.google-analytics.com https://accounts.google.com https://challenges.cloudflare.com https://generativelanguage.googleapis.com; " +
	"frame-src 'self' https://accounts.google.com https://challenges.cloudflare.com; " +
	"object-src 'none'; base-uri 'self'; form-action 'self'; frame-ancestors 'self'"

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	EnableHSTS bool          // only honoured for HTTPS requests
	HSTSMaxAge time.Duration // defaults to 180 days
	CSP        string        // defaults to ContentSecurityPolicy
}

// SecurityHeaders attaches the browser hardening headers. Popups stay allowed
// for the OAuth login window.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains"
	csp := opt.CSP
	if csp == "" {
		csp = ContentSecurityPolicy
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", csp)
		h.Set("Cross-Origin-Opener-Policy", "same-origin-allow-popups")
		h.Set("Cross-Origin-Resource-Policy", "same-site")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		const expose = "Access-Control-Expose-Headers"
		if cur := h.Get(expose); cur == "" {
			h.Set(expose, TraceIDHeader)
		} else if !strings.Contains(cur, TraceIDHeader) {
			h.Set(expose, cur+", "+TraceIDHeader)
		}

		c.Next()
	}
}

// isHTTPS reports whether the request used HTTPS directly or behind a proxy
// that set X-Forwarded-Proto.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
