package handlers

import (
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-testgen-gateway/internal/http/middleware"
	"github.com/tbourn/go-testgen-gateway/internal/identity"
)

const (
	pkceCookie      = "pkce_verifier"
	authCookiePath  = "/api/auth"
	pkceCookieTTL   = 10 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour
	defaultProvider = "google"
)

var providerRE = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,31}$`)

func (h *Handlers) setCookie(c *gin.Context, name, value, path string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), path, "", h.SecureCookie, true)
}

func (h *Handlers) clearCookie(c *gin.Context, name, path string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, path, "", h.SecureCookie, true)
}

// Login starts the OAuth PKCE flow.
//
// @Summary      Start login
// @Tags         auth
// @Param        provider  query  string  false  "OAuth provider (default google)"
// @Param        next      query  string  false  "Relative path to return to"
// @Success      302
// @Failure      400  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /api/auth/login [get]
func (h *Handlers) Login(c *gin.Context) {
	if !h.Auth.Configured() {
		fail(c, http.StatusServiceUnavailable, ErrCodeNotConfigured, "login is not configured")
		return
	}
	provider := c.DefaultQuery("provider", defaultProvider)
	if !providerRE.MatchString(provider) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid provider")
		return
	}
	next := identity.SafeNext(c.Query("next"))

	verifier, challenge := identity.NewPKCE()
	h.setCookie(c, pkceCookie, verifier, authCookiePath, pkceCookieTTL)

	redirectTo := h.PublicURL + "/api/auth/callback?" + url.Values{"next": {next}}.Encode()
	c.Redirect(http.StatusFound, h.Auth.AuthorizeURL(provider, redirectTo, challenge))
}

// Callback completes the PKCE exchange and sets the session cookies.
//
// @Summary      Login callback
// @Tags         auth
// @Param        code  query  string  true   "Authorization code"
// @Param        next  query  string  false  "Relative path to return to"
// @Success      302
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /api/auth/callback [get]
func (h *Handlers) Callback(c *gin.Context) {
	code := c.Query("code")
	verifier, err := c.Cookie(pkceCookie)
	if code == "" || err != nil || verifier == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing authorization code or login state")
		return
	}
	h.clearCookie(c, pkceCookie, authCookiePath)

	sess, err := h.Auth.ExchangeCode(c.Request.Context(), code, verifier)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("code exchange failed")
		fail(c, http.StatusUnauthorized, ErrCodeUnauthenticated, "login failed")
		return
	}

	accessTTL := time.Duration(sess.ExpiresIn) * time.Second
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	h.setCookie(c, middleware.AccessTokenCookie, sess.AccessToken, "/", accessTTL)
	if sess.RefreshToken != "" {
		h.setCookie(c, middleware.RefreshTokenCookie, sess.RefreshToken, "/", refreshTokenTTL)
	}
	c.Redirect(http.StatusFound, h.FrontendURL+identity.SafeNext(c.Query("next")))
}

// Logout revokes the session at the provider (best effort) and clears the
// session cookies.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]bool
// @Router       /api/auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	token := identity.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token, _ = c.Cookie(middleware.AccessTokenCookie)
	}
	if token != "" && h.Auth.Configured() {
		if err := h.Auth.Logout(c.Request.Context(), token); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("provider logout failed")
		}
	}
	h.clearCookie(c, middleware.AccessTokenCookie, "/")
	h.clearCookie(c, middleware.RefreshTokenCookie, "/")
	ok(c, gin.H{"success": true})
}
