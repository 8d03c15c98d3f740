// Package httpapi wires the HTTP transport (Gin) to the handlers and
// middleware. It owns the middleware order and the route table for both the
// gateway and the sandbox worker.
//
// Gateway middleware order:
//  1. OpenTelemetry
//  2. Request size guard (before anything reads the body)
//  3. Trace id, then the request-scoped logger
//  4. Redacting access log and error masking
//  5. Metrics
//  6. CORS and security headers
//  7. Compression (never on the event stream)
//  8. Tester bypass, then authentication
//
// Route-level gates (auth, captcha, rate limits) are attached per route.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-testgen-gateway/internal/config"
	"github.com/tbourn/go-testgen-gateway/internal/http/handlers"
	"github.com/tbourn/go-testgen-gateway/internal/http/middleware"
)

// Per-route quotas.
var (
	GenerateQuota = middleware.PerMinute(5)
	ExecuteQuota  = middleware.PerMinute(5)
	AdsQuota      = middleware.PerMinute(15)
)

const rateLimitPrefix = "testgen:rl:"

// Limiters holds one limiter per rate-limited route.
type Limiters struct {
	Generate middleware.Limiter
	Execute  middleware.Limiter
	Ads      middleware.Limiter
}

// NewLimiters builds in-process limiters, or Redis-backed ones when the
// backend is "redis" and a client is available.
func NewLimiters(cfg config.Config, client redis.Scripter) Limiters {
	if cfg.RateLimitBackend == "redis" && client != nil {
		return Limiters{
			Generate: middleware.NewRedisLimiter(client, rateLimitPrefix, GenerateQuota),
			Execute:  middleware.NewRedisLimiter(client, rateLimitPrefix, ExecuteQuota),
			Ads:      middleware.NewRedisLimiter(client, rateLimitPrefix, AdsQuota),
		}
	}
	return Limiters{
		Generate: middleware.NewRateLimiter(GenerateQuota),
		Execute:  middleware.NewRateLimiter(ExecuteQuota),
		Ads:      middleware.NewRateLimiter(AdsQuota),
	}
}

// Gateway collects everything RegisterRoutes needs.
type Gateway struct {
	Config   config.Config
	Handlers *handlers.Handlers
	Verifier middleware.TokenVerifier
	Captcha  middleware.CaptchaVerifier
	Limiters Limiters
}

// RegisterRoutes attaches the gateway middleware and endpoints to r.
func RegisterRoutes(r *gin.Engine, g Gateway) {
	cfg := g.Config
	h := g.Handlers
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.SizeGuard(cfg.MaxBodyBytes))
	r.Use(middleware.TraceID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.TesterHeader},
	}))
	r.Use(middleware.ErrorMasker())
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	useCORS(r, cfg.CORS.AllowedOrigins)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/generate"})))
	r.Use(middleware.TesterBypass(cfg.TesterSecret))
	r.Use(middleware.Authenticate(g.Verifier))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerFallbacks(r)

	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	{
		auth := middleware.RequireAuth()

		api.POST("/generate", auth, middleware.Captcha(g.Captcha),
			middleware.RateLimit(g.Limiters.Generate, "generate"), h.Generate)
		api.POST("/execute", auth, middleware.RateLimit(g.Limiters.Execute, "execute"), h.Execute)
		api.POST("/ads/reward", auth, middleware.RateLimit(g.Limiters.Ads, "ads"), h.AdReward)
		api.POST("/kofi/webhook", h.KofiWebhook)

		api.GET("/history/", auth, h.ListHistory)
		api.GET("/user/status", auth, h.UserStatus)
		api.GET("/tokens", auth, h.TokenInfo)
		api.GET("/languages", h.Languages)

		api.GET("/auth/login", h.Login)
		api.GET("/auth/callback", h.Callback)
		api.POST("/auth/logout", h.Logout)
	}
}

// RegisterWorkerRoutes attaches the sandbox worker's endpoints to r. Only
// /execute requires the shared worker token.
func RegisterWorkerRoutes(r *gin.Engine, cfg config.Config, wh *handlers.WorkerHandlers) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.SizeGuard(cfg.MaxBodyBytes))
	r.Use(middleware.TraceID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.ErrorMasker())
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerFallbacks(r)

	r.GET("/health", wh.HealthCheck)
	r.POST("/execute", middleware.WorkerAuth(cfg.Worker.AuthToken), wh.Execute)
}

func registerFallbacks(r *gin.Engine) {
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})
}

// useCORS allows any origin without credentials when no allowlist is
// configured; otherwise only listed origins, with cookies.
func useCORS(r *gin.Engine, origins []string) {
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.TesterHeader}
	exposeHeaders := []string{middleware.TraceIDHeader, "Retry-After", "Content-Length"}
	methods := []string{"GET", "POST", "OPTIONS"}

	if len(origins) == 0 {
		// ACAO: * even without an Origin header, so plain health checks see it.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
		return
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     methods,
		AllowHeaders:     allowHeaders,
		ExposeHeaders:    exposeHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
