package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
	"github.com/tbourn/go-testgen-gateway/internal/identity"
	"github.com/tbourn/go-testgen-gateway/internal/sysutil"
)

const (
	principalKey = "principal"
	// userIDKey is read by the rate limiter key function.
	userIDKey = "userID"

	// AccessTokenCookie holds the access token after the OAuth callback.
	AccessTokenCookie = "access_token"
	// RefreshTokenCookie holds the refresh token after the OAuth callback.
	RefreshTokenCookie = "refresh_token"
)

// TokenVerifier resolves a bearer token to a principal.
type TokenVerifier interface {
	Verify(token string) (domain.Principal, error)
}

// Authenticate resolves the bearer token (Authorization header first, then
// the access_token cookie) and attaches the principal when it verifies.
// It never rejects; use RequireAuth on protected routes.
func Authenticate(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := identity.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(AccessTokenCookie)
		}
		if token != "" {
			if p, err := v.Verify(token); err == nil {
				SetPrincipal(c, p)
				setLogger(c, LoggerFrom(c).With().Str("user_id", p.ID).Logger())
			}
		}
		c.Next()
	}
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}

// RequireAuth rejects requests without a verified principal with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := PrincipalFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail":   "authentication required",
				"code":     "UNAUTHENTICATED",
				"trace_id": TraceIDFrom(c),
			})
			return
		}
		c.Next()
	}
}

// WorkerAuth guards the worker API with the shared bearer token.
func WorkerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := identity.BearerToken(c.GetHeader("Authorization"))
		switch {
		case presented == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "missing bearer token"})
			return
		case !sysutil.SecretEqual(presented, token):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "invalid token"})
			return
		}
		c.Next()
	}
}

// SetPrincipal attaches p as the authenticated caller.
func SetPrincipal(c *gin.Context, p domain.Principal) {
	c.Set(principalKey, p)
	c.Set(userIDKey, p.ID)
}

