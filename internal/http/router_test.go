package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-testgen-gateway/internal/config"
	"github.com/tbourn/go-testgen-gateway/internal/domain"
	"github.com/tbourn/go-testgen-gateway/internal/http/handlers"
	"github.com/tbourn/go-testgen-gateway/internal/http/middleware"
	"github.com/tbourn/go-testgen-gateway/internal/services"
	"github.com/tbourn/go-testgen-gateway/internal/strategy"
)

func init() { gin.SetMode(gin.TestMode) }

type tokenVerifier struct{}

func (tokenVerifier) Verify(token string) (domain.Principal, error) {
	if token == "good" {
		return domain.Principal{ID: "u1", Email: "u1@example.com"}, nil
	}
	return domain.Principal{}, errors.New("bad token")
}

type passCaptcha struct{}

func (passCaptcha) Verify(context.Context, string, string) error { return nil }

type chunkGenerator struct{}

func (chunkGenerator) Generate(context.Context, domain.Principal, domain.GenerationRequest) (<-chan string, error) {
	ch := make(chan string, 2)
	ch <- "def test_a():\n"
	ch <- "    assert True\n"
	close(ch)
	return ch, nil
}

type okExecutor struct{}

func (okExecutor) Execute(context.Context, domain.ExecutionTask) domain.ExecutionResult {
	return domain.ExecutionResult{Success: true, Output: "1 passed"}
}

func testConfig() config.Config {
	return config.Config{
		MaxBodyBytes:     1 << 10,
		RateLimitBackend: "memory",
		OTEL:             config.OTELConfig{ServiceName: "router-test"},
	}
}

func newGateway(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	r := gin.New()
	RegisterRoutes(r, Gateway{
		Config: cfg,
		Handlers: &handlers.Handlers{
			Generator:  chunkGenerator{},
			Executor:   okExecutor{},
			Health:     &services.HealthService{Probes: map[string]services.Probe{}},
			Strategies: strategy.NewRegistry(),
		},
		Verifier: tokenVerifier{},
		Captcha:  passCaptcha{},
		Limiters: NewLimiters(cfg, nil),
	})
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthMetricsAndFallbacks(t *testing.T) {
	r := newGateway(t, testConfig())

	w := do(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(middleware.TraceIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = do(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), handlers.ErrCodeNotFound)

	w = do(r, httptest.NewRequest(http.MethodDelete, "/api/languages", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(r, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "swagger is off unless enabled")
}

func TestRegisterRoutes_CORSAllowlist(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"https://app.example.com"}
	r := newGateway(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := do(r, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = do(r, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRegisterRoutes_ProtectedRoutesNeedAuth(t *testing.T) {
	r := newGateway(t, testConfig())
	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/generate"},
		{http.MethodPost, "/api/execute"},
		{http.MethodPost, "/api/ads/reward"},
		{http.MethodGet, "/api/history/"},
		{http.MethodGet, "/api/user/status"},
		{http.MethodGet, "/api/tokens"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req := httptest.NewRequest(rt.method, rt.path, strings.NewReader(`{}`))
			req.Header.Set("Authorization", "Bearer forged")
			w := do(r, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), handlers.ErrCodeUnauthenticated)
		})
	}
}

func TestRegisterRoutes_GenerateStreamIsNeverCompressed(t *testing.T) {
	r := newGateway(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/generate",
		strings.NewReader(`{"input_code":"def f(): pass","language":"python"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set("Accept-Encoding", "gzip")
	w := do(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "def test_a():\n    assert True\n", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/languages", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w = do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}

func TestRegisterRoutes_ExecuteRateLimitedPerUser(t *testing.T) {
	r := newGateway(t, testConfig())
	body := `{"input_code":"x = 1","test_code":"def test_x(): pass","language":"python"}`

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/execute", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer good")
		return do(r, req)
	}
	for i := 0; i < ExecuteQuota.Limit; i++ {
		require.Equal(t, http.StatusOK, send().Code, "request %d", i+1)
	}
	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRegisterRoutes_OversizedBodyRejectedFirst(t *testing.T) {
	r := newGateway(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/execute", strings.NewReader(strings.Repeat("a", 2<<10)))
	w := do(r, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestNewLimiters_FallsBackToMemoryWithoutClient(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitBackend = "redis"
	l := NewLimiters(cfg, nil)
	_, ok := l.Generate.(*middleware.RateLimiter)
	assert.True(t, ok)
}

func TestRegisterWorkerRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.Worker.AuthToken = "worker-secret"
	r := gin.New()
	RegisterWorkerRoutes(r, cfg, &handlers.WorkerHandlers{
		Sandbox: okExecutor{},
		Health:  &services.HealthService{Probes: map[string]services.Probe{"runtime": func(context.Context) error { return nil }}},
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"runtime":{"status":"up"}`)

	body := `{"input_code":"x = 1","test_code":"def test_x(): pass","language":"python"}`
	req := httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(body))
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusForbidden, do(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer worker-secret")
	req.Header.Set("Content-Type", "application/json")
	w = do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "1 passed")
}
