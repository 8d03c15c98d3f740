package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-testgen-gateway/internal/cache"
	"github.com/tbourn/go-testgen-gateway/internal/captcha"
	"github.com/tbourn/go-testgen-gateway/internal/config"
	"github.com/tbourn/go-testgen-gateway/internal/envelope"
	"github.com/tbourn/go-testgen-gateway/internal/executor"
	httpapi "github.com/tbourn/go-testgen-gateway/internal/http"
	"github.com/tbourn/go-testgen-gateway/internal/http/handlers"
	"github.com/tbourn/go-testgen-gateway/internal/identity"
	"github.com/tbourn/go-testgen-gateway/internal/llm"
	"github.com/tbourn/go-testgen-gateway/internal/observability"
	"github.com/tbourn/go-testgen-gateway/internal/repo"
	"github.com/tbourn/go-testgen-gateway/internal/services"
	"github.com/tbourn/go-testgen-gateway/internal/strategy"
	"github.com/tbourn/go-testgen-gateway/internal/stream"
	"github.com/tbourn/go-testgen-gateway/internal/sysutil"
)

const (
	redisKeyPrefix  = "testgen:"
	memoryCacheSize = 4096
	outboundTimeout = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the public gateway",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateGateway(); err != nil {
		return err
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)
	warnDisabledGates(log.Logger, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	gw, cleanups, err := buildGateway(ctx, cfg)
	if err != nil {
		_ = otelShutdown(context.Background())
		return err
	}
	cleanups = append(cleanups,
		cleanup{"memguard", func(context.Context) error { memguard.Purge(); return nil }},
		cleanup{"otel", otelShutdown},
	)

	r := gin.New()
	httpapi.RegisterRoutes(r, gw)

	log.Info().
		Str("version", version).
		Str("environment", cfg.Environment).
		Str("rate_limit_backend", cfg.RateLimitBackend).
		Msg("gateway configured")
	return run(ctx, newServer(cfg, cfg.Port, r), cleanups)
}

func warnDisabledGates(l zerolog.Logger, cfg config.Config) {
	for _, g := range cfg.DisabledGates() {
		l.Warn().Str("setting", g.Setting).Msg(g.Setting + " is empty; " + g.Effect)
	}
}

// buildGateway connects the stores and assembles the services. The returned
// cleanups run in order after the HTTP server has drained.
func buildGateway(ctx context.Context, cfg config.Config) (httpapi.Gateway, []cleanup, error) {
	env, err := envelope.New(cfg.DataEncryptionKey)
	if err != nil {
		return httpapi.Gateway{}, nil, fmt.Errorf("DATA_ENCRYPTION_KEY: %w", err)
	}

	var (
		store   cache.Store
		scripts redis.Scripter
	)
	if cfg.RedisURL != "" {
		rc, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return httpapi.Gateway{}, nil, fmt.Errorf("redis: %w", err)
		}
		store, scripts = cache.NewRedisStore(rc, redisKeyPrefix), rc
	} else {
		store = cache.NewMemoryStore(memoryCacheSize)
	}
	engine := cache.NewEngine(store)

	db, err := repo.Open(ctx, cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		_ = engine.Close()
		return httpapi.Gateway{}, nil, fmt.Errorf("database: %w", err)
	}
	wallet, err := walletFor(db)
	if err != nil {
		_ = engine.Close()
		_ = repo.Close(db)
		return httpapi.Gateway{}, nil, err
	}

	// Model streams are bounded by the request context, not a client timeout.
	model := llm.NewGemini(cfg.LLM.APIKey, cfg.LLM.BaseURL, observability.HTTPClient(0))
	hc := observability.HTTPClient(outboundTimeout)
	idp := identity.NewClient(cfg.Identity.URL, cfg.Identity.AnonKey, cfg.Identity.ServiceRoleKey, hc)
	proxy := executor.NewProxy(cfg.Worker.URL, cfg.Worker.AuthToken,
		observability.HTTPClient(cfg.Worker.RequestTimeout))

	ledger := &services.LedgerService{
		Wallet:           wallet,
		WelcomeTokens:    cfg.Economy.WelcomeTokens,
		DailyBonusTokens: cfg.Economy.DailyBonusTokens,
	}
	history := &services.HistoryService{DB: db, Cipher: env, Cache: engine}
	registry := strategy.NewRegistry()
	gen := &services.Generator{
		Strategies:    registry,
		Cache:         engine,
		LLM:           model,
		Flights:       stream.NewGroup(),
		Billing:       ledger,
		History:       history,
		Retry:         llm.DefaultRetry,
		AllowedModels: cfg.LLM.AllowedModels,
		DefaultModel:  cfg.LLM.DefaultModel,
		Cost:          cfg.Economy.GenerationCost,
	}

	h := &handlers.Handlers{
		Generator: gen,
		Executor:  proxy,
		AdRewards: &services.AdRewardService{Ledger: ledger, Tokens: cfg.Economy.AdRewardTokens},
		Webhooks: &services.WebhookService{
			Ledger:            ledger,
			Users:             idp,
			VerificationToken: cfg.KofiVerificationToken,
			Economy:           cfg.Economy,
		},
		History: history,
		Status:  &services.StatusService{Usage: history, WeeklyLimit: cfg.Economy.WeeklyLimit},
		Tokens:  ledger,
		Health: &services.HealthService{Probes: map[string]services.Probe{
			"redis":    engine.Ping,
			"database": func(ctx context.Context) error { return repo.Ping(ctx, db) },
			"model": func(context.Context) error {
				if !model.Configured() {
					return llm.ErrNotConfigured
				}
				return nil
			},
		}},
		Auth:         idp,
		Strategies:   registry,
		PublicURL:    cfg.PublicURL,
		FrontendURL:  cfg.FrontendURL,
		SecureCookie: cfg.Security.SecureCookie,
	}

	cleanups := []cleanup{
		{"history writes", gen.Wait},
		{"execution proxy", func(context.Context) error { proxy.Close(); return nil }},
		{"cache", func(context.Context) error { return engine.Close() }},
		{"database", func(context.Context) error { return repo.Close(db) }},
	}

	return httpapi.Gateway{
		Config:   cfg,
		Handlers: h,
		Verifier: identity.NewVerifier(cfg.Identity.JWTSecret),
		Captcha:  captcha.NewTurnstile(cfg.TurnstileSecret, cfg.TurnstileVerifyURL, hc),
		Limiters: httpapi.NewLimiters(cfg, scripts),
	}, cleanups, nil
}

// walletFor picks the stored-procedure wallet on Postgres (schema from the
// migrate command) and the GORM wallet on SQLite.
func walletFor(db *gorm.DB) (services.WalletProcedures, error) {
	if repo.IsPostgres(db) {
		return repo.NewPostgresWallet(db), nil
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return repo.NewGormWallet(db), nil
}
