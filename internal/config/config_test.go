package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("GIN_MODE", "weird") // normalizes to "release"
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("PUBLIC_URL", "https://api.example.com/")
	t.Setenv("ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("GENERATION_COST", "x") // parse failure -> default
	t.Setenv("KOFI_TIERS", "3:280,25:3000,10:1100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.ReadHeaderTimeout != time.Second ||
		cfg.IdleTimeout != 4*time.Second || cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.WriteTimeout != 0 {
		t.Fatalf("write timeout should default to 0 for streaming, got %v", cfg.WriteTimeout)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log level not normalized: %q", cfg.LogLevel)
	}
	if !cfg.Production() || !cfg.Security.EnableHSTS || !cfg.Security.SecureCookie {
		t.Fatalf("production posture unexpected: %+v", cfg.Security)
	}
	if cfg.PublicURL != "https://api.example.com" {
		t.Fatalf("public url not trimmed: %q", cfg.PublicURL)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Economy.GenerationCost != 10 {
		t.Fatalf("generation cost fallback: %d", cfg.Economy.GenerationCost)
	}
	want := []Tier{{25, 3000}, {10, 1100}, {3, 280}}
	if !reflect.DeepEqual(cfg.Economy.Tiers, want) {
		t.Fatalf("tiers not sorted descending: %+v", cfg.Economy.Tiers)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Production() || cfg.Security.EnableHSTS {
		t.Fatalf("development should not enable HSTS")
	}
	if cfg.MaxBodyBytes != 10<<20 {
		t.Fatalf("max body default: %d", cfg.MaxBodyBytes)
	}
	if cfg.LLM.DefaultModel == "" || len(cfg.LLM.AllowedModels) == 0 {
		t.Fatalf("model defaults missing: %+v", cfg.LLM)
	}
	if cfg.Worker.RunTimeout != 10*time.Second {
		t.Fatalf("sandbox timeout default: %v", cfg.Worker.RunTimeout)
	}
	if len(cfg.Economy.Tiers) != 4 || cfg.Economy.Tiers[0].Threshold != 25 {
		t.Fatalf("default tiers unexpected: %+v", cfg.Economy.Tiers)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"negative write timeout", map[string]string{"WRITE_TIMEOUT": "-1s"}, "WRITE_TIMEOUT"},
		{"zero read timeout", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts"},
		{"redis limiter without redis", map[string]string{"RATE_LIMIT_BACKEND": "redis"}, "REDIS_URL"},
		{"unknown limiter", map[string]string{"RATE_LIMIT_BACKEND": "etcd"}, "RATE_LIMIT_BACKEND"},
		{"negative cost", map[string]string{"GENERATION_COST": "-5"}, "GENERATION_COST"},
		{"bad sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
		{"bad tiers", map[string]string{"KOFI_TIERS": "ten:100"}, "KOFI_TIERS"},
		{"zero body limit", map[string]string{"MAX_BODY_BYTES": "0"}, "MAX_BODY_BYTES"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateGateway(t *testing.T) {
	cfg := Config{LLM: LLMConfig{DefaultModel: "m"}}
	if err := cfg.ValidateGateway(); err == nil || !strings.Contains(err.Error(), "DATA_ENCRYPTION_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
	cfg.DataEncryptionKey = "k"
	if err := cfg.ValidateGateway(); err == nil || !strings.Contains(err.Error(), "SUPABASE_JWT_SECRET") {
		t.Fatalf("expected missing jwt secret error, got %v", err)
	}
	cfg.Identity.JWTSecret = "s"
	if err := cfg.ValidateGateway(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestDisabledGates(t *testing.T) {
	gates := Config{}.DisabledGates()
	if len(gates) != 2 || gates[0].Setting != "TURNSTILE_SECRET_KEY" || gates[1].Setting != "KOFI_VERIFICATION_TOKEN" {
		t.Fatalf("unexpected gates: %+v", gates)
	}
	cfg := Config{TurnstileSecret: "ts", KofiVerificationToken: "kv"}
	if gates := cfg.DisabledGates(); len(gates) != 0 {
		t.Fatalf("expected no disabled gates, got %+v", gates)
	}
}

func TestValidateWorker(t *testing.T) {
	cfg := Config{Worker: WorkerConfig{Port: "8090"}}
	if err := cfg.ValidateWorker(); err == nil {
		t.Fatalf("expected missing token error")
	}
	cfg.Worker.AuthToken = "t"
	if err := cfg.ValidateWorker(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestHelpers(t *testing.T) {
	t.Setenv("B", "off")
	if getbool("B", true) {
		t.Fatalf("getbool off")
	}
	t.Setenv("D", "nope")
	if getdur("D", time.Second) != time.Second {
		t.Fatalf("getdur fallback")
	}
	if splitCSV("") != nil {
		t.Fatalf("splitCSV empty")
	}
	if _, err := parseTiers("5"); err == nil {
		t.Fatalf("parseTiers should reject missing colon")
	}
}
