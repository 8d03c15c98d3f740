// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes gateway and worker
// settings such as server timeouts, logging, storage backends, upstream
// credentials, token economics, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	SecureCookie bool
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "testgen-gateway")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LLMConfig holds upstream model settings.
type LLMConfig struct {
	APIKey        string   // GEMINI_API_KEY
	BaseURL       string   // GEMINI_BASE_URL (OpenAI-compatible endpoint)
	AllowedModels []string // ALLOWED_MODELS
	DefaultModel  string   // DEFAULT_MODEL
}

// IdentityConfig holds identity provider settings.
type IdentityConfig struct {
	URL            string // SUPABASE_URL
	AnonKey        string // SUPABASE_ANON_KEY
	ServiceRoleKey string // SUPABASE_SERVICE_ROLE_KEY
	JWTSecret      string // SUPABASE_JWT_SECRET
}

// WorkerConfig holds settings shared by the execution proxy and the sandbox worker.
type WorkerConfig struct {
	URL            string        // WORKER_URL
	AuthToken      string        // WORKER_AUTH_TOKEN
	Port           string        // WORKER_PORT
	Runtime        string        // SANDBOX_RUNTIME (docker|podman)
	Image          string        // SANDBOX_IMAGE
	RunTimeout     time.Duration // SANDBOX_TIMEOUT
	RequestTimeout time.Duration // WORKER_REQUEST_TIMEOUT
}

// Tier maps a minimum payment amount to a token grant.
type Tier struct {
	Threshold float64
	Tokens    int
}

// EconomyConfig holds token economics.
type EconomyConfig struct {
	WelcomeTokens    int // WELCOME_TOKENS
	DailyBonusTokens int // DAILY_BONUS_TOKENS
	GenerationCost   int // GENERATION_COST
	AdRewardTokens   int // AD_REWARD_TOKENS
	WeeklyLimit      int // WEEKLY_LIMIT

	SubscriptionTokens    int    // KOFI_SUBSCRIPTION_TOKENS
	DonationDefaultTokens int    // KOFI_DONATION_DEFAULT_TOKENS
	Tiers                 []Tier // KOFI_TIERS, sorted by Threshold descending
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // 0 disables (streaming responses)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // request size guard
	GinMode           string        // debug|release|test
	Environment       string        // development|production

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route

	// URLs
	PublicURL   string // externally visible gateway origin
	FrontendURL string // post-login redirect target

	// Storage
	DatabaseURL       string // Postgres DSN; empty selects SQLite
	DBPath            string // SQLite path
	DataEncryptionKey string // Fernet key (url-safe base64, 32 bytes)
	RedisURL          string // empty selects the in-process cache store

	// Rate limiting
	RateLimitBackend string // memory|redis

	// Third parties
	LLM                   LLMConfig
	Identity              IdentityConfig
	TurnstileSecret       string
	TurnstileVerifyURL    string
	KofiVerificationToken string
	TesterSecret          string

	Worker  WorkerConfig
	Economy EconomyConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// Production reports whether the deployment runs in production mode.
func (c Config) Production() bool { return c.Environment == "production" }

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables (and a .env file when
// present), applies defaults, normalizes values, and validates the result.
//
// Load does not require gateway secrets; call ValidateGateway or
// ValidateWorker for the role being started.
func Load() (Config, error) {
	_ = godotenv.Load()

	tiers, err := parseTiers(getenv("KOFI_TIERS", "25:3000,10:1100,5:500,3:280"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 0),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 10<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		Environment:       strings.ToLower(getenv("ENVIRONMENT", "development")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),

		PublicURL:   strings.TrimRight(getenv("PUBLIC_URL", "http://localhost:8080"), "/"),
		FrontendURL: strings.TrimRight(getenv("FRONTEND_URL", "http://localhost:3000"), "/"),

		// Storage
		DatabaseURL:       getenv("DATABASE_URL", ""),
		DBPath:            getenv("DB_PATH", "testgen.db"),
		DataEncryptionKey: getenv("DATA_ENCRYPTION_KEY", ""),
		RedisURL:          getenv("REDIS_URL", ""),

		RateLimitBackend: strings.ToLower(getenv("RATE_LIMIT_BACKEND", "memory")),

		LLM: LLMConfig{
			APIKey:        getenv("GEMINI_API_KEY", ""),
			BaseURL:       getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			AllowedModels: splitCSV(getenv("ALLOWED_MODELS", "gemini-3-flash-preview,gemini-2.5-flash,gemini-2.5-pro")),
			DefaultModel:  getenv("DEFAULT_MODEL", "gemini-3-flash-preview"),
		},
		Identity: IdentityConfig{
			URL:            strings.TrimRight(getenv("SUPABASE_URL", ""), "/"),
			AnonKey:        getenv("SUPABASE_ANON_KEY", ""),
			ServiceRoleKey: getenv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWTSecret:      getenv("SUPABASE_JWT_SECRET", ""),
		},
		TurnstileSecret:       getenv("TURNSTILE_SECRET_KEY", ""),
		TurnstileVerifyURL:    getenv("TURNSTILE_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
		KofiVerificationToken: getenv("KOFI_VERIFICATION_TOKEN", ""),
		TesterSecret:          getenv("TESTER_INTERNAL_SECRET", ""),

		Worker: WorkerConfig{
			URL:            strings.TrimRight(getenv("WORKER_URL", "http://localhost:8090"), "/"),
			AuthToken:      getenv("WORKER_AUTH_TOKEN", ""),
			Port:           getenv("WORKER_PORT", "8090"),
			Runtime:        getenv("SANDBOX_RUNTIME", "docker"),
			Image:          getenv("SANDBOX_IMAGE", "testgen-sandbox:latest"),
			RunTimeout:     getdur("SANDBOX_TIMEOUT", 10*time.Second),
			RequestTimeout: getdur("WORKER_REQUEST_TIMEOUT", 60*time.Second),
		},
		Economy: EconomyConfig{
			WelcomeTokens:         getint("WELCOME_TOKENS", 100),
			DailyBonusTokens:      getint("DAILY_BONUS_TOKENS", 20),
			GenerationCost:        getint("GENERATION_COST", 10),
			AdRewardTokens:        getint("AD_REWARD_TOKENS", 15),
			WeeklyLimit:           getint("WEEKLY_LIMIT", 50),
			SubscriptionTokens:    getint("KOFI_SUBSCRIPTION_TOKENS", 1500),
			DonationDefaultTokens: getint("KOFI_DONATION_DEFAULT_TOKENS", 100),
			Tiers:                 tiers,
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 365*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "testgen-gateway"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Environment == "prod" {
		cfg.Environment = "production"
	}
	cfg.Security.EnableHSTS = getbool("ENABLE_HSTS", cfg.Production())
	cfg.Security.SecureCookie = getbool("SECURE_COOKIES", cfg.Production())

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.WriteTimeout < 0 {
		return cfg, errors.New("WRITE_TIMEOUT must be >= 0")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	if cfg.DatabaseURL == "" && strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty when DATABASE_URL is unset")
	}
	switch cfg.RateLimitBackend {
	case "memory":
	case "redis":
		if cfg.RedisURL == "" {
			return cfg, errors.New("RATE_LIMIT_BACKEND=redis requires REDIS_URL")
		}
	default:
		return cfg, errors.New("RATE_LIMIT_BACKEND must be one of: memory, redis")
	}
	if cfg.Economy.WelcomeTokens < 0 || cfg.Economy.DailyBonusTokens < 0 || cfg.Economy.AdRewardTokens < 0 {
		return cfg, errors.New("token grants must be >= 0")
	}
	if cfg.Economy.GenerationCost < 0 {
		return cfg, errors.New("GENERATION_COST must be >= 0")
	}
	if cfg.Economy.WeeklyLimit < 0 {
		return cfg, errors.New("WEEKLY_LIMIT must be >= 0")
	}
	if cfg.Worker.RunTimeout <= 0 || cfg.Worker.RequestTimeout <= 0 {
		return cfg, errors.New("worker timeouts must be positive durations")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ValidateGateway checks the settings the gateway cannot start without.
func (c Config) ValidateGateway() error {
	if strings.TrimSpace(c.DataEncryptionKey) == "" {
		return errors.New("DATA_ENCRYPTION_KEY is required")
	}
	if strings.TrimSpace(c.Identity.JWTSecret) == "" {
		return errors.New("SUPABASE_JWT_SECRET is required")
	}
	if strings.TrimSpace(c.LLM.DefaultModel) == "" {
		return errors.New("DEFAULT_MODEL must not be empty")
	}
	return nil
}

// DisabledGate is an optional setting whose absence switches a check off.
type DisabledGate struct {
	Setting string
	Effect  string
}

// DisabledGates lists the gateway checks an empty setting turns off. They
// are not startup errors, so serve logs them as warnings.
func (c Config) DisabledGates() []DisabledGate {
	var out []DisabledGate
	if strings.TrimSpace(c.TurnstileSecret) == "" {
		out = append(out, DisabledGate{"TURNSTILE_SECRET_KEY", "CAPTCHA check disabled for /api/generate"})
	}
	if strings.TrimSpace(c.KofiVerificationToken) == "" {
		out = append(out, DisabledGate{"KOFI_VERIFICATION_TOKEN", "Ko-fi webhook will reject every event"})
	}
	return out
}

// ValidateWorker checks the settings the sandbox worker cannot start without.
func (c Config) ValidateWorker() error {
	if strings.TrimSpace(c.Worker.AuthToken) == "" {
		return errors.New("WORKER_AUTH_TOKEN is required")
	}
	if strings.TrimSpace(c.Worker.Port) == "" {
		return errors.New("WORKER_PORT must not be empty")
	}
	return nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseTiers reads "threshold:tokens" pairs and returns them sorted by
// threshold, highest first.
func parseTiers(s string) ([]Tier, error) {
	var tiers []Tier
	for _, part := range splitCSV(s) {
		th, tok, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("KOFI_TIERS: malformed entry %q", part)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(th), 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("KOFI_TIERS: bad threshold in %q", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("KOFI_TIERS: bad token count in %q", part)
		}
		tiers = append(tiers, Tier{Threshold: f, Tokens: n})
	}
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].Threshold > tiers[j].Threshold })
	return tiers, nil
}
