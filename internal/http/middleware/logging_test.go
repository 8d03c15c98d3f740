package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestTraceID_FreshPerRequestAndIgnoresClientValue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceID())
	r.GET("/t", func(c *gin.Context) {
		if TraceIDFrom(c) == "" {
			t.Errorf("trace id not in context")
		}
		c.String(http.StatusOK, TraceIDFrom(c))
	})

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/t", nil)
		req.Header.Set(TraceIDHeader, "client-chosen")
		r.ServeHTTP(w, req)
		id := w.Header().Get(TraceIDHeader)
		if id == "" || id == "client-chosen" || id != w.Body.String() {
			t.Fatalf("unexpected trace id %q (body %q)", id, w.Body.String())
		}
		if seen[id] {
			t.Fatalf("trace id reused: %s", id)
		}
		seen[id] = true
	}
}

func TestRequestLogger_ReachesServiceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(TraceID(), RequestLogger())
	r.GET("/svc", func(c *gin.Context) {
		// services log through the request context
		zerolog.Ctx(c.Request.Context()).Info().Msg("from service")
		LoggerFrom(c).Info().Msg("from handler")
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/svc", nil))
	trace := w.Header().Get(TraceIDHeader)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	for _, line := range lines {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log json: %v", err)
		}
		if m["trace_id"] != trace || m["path"] != "/svc" {
			t.Fatalf("log line missing request fields: %v", m)
		}
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatalf("expected fallback logger")
	}
}

func TestErrorMasker_PanicAndErrorsAreMasked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(TraceID(), RequestLogger(), ErrorMasker())
	r.GET("/panic", func(c *gin.Context) { panic("db password is hunter2") })
	r.GET("/err", func(c *gin.Context) { _ = c.Error(errors.New("secret upstream detail")) })
	r.GET("/handled", func(c *gin.Context) {
		_ = c.Error(errors.New("noted"))
		c.JSON(http.StatusBadRequest, gin.H{"detail": "bad"})
	})

	for _, path := range []string{"/panic", "/err"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("%s: status %d", path, w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: bad json: %v", path, err)
		}
		if body["message"] != "Internal Server Error" || body["code"] != "INTERNAL_ERROR" || len(body) != 2 {
			t.Fatalf("%s: unexpected body %v", path, body)
		}
		if strings.Contains(w.Body.String(), "hunter2") || strings.Contains(w.Body.String(), "secret") {
			t.Fatalf("%s: internal text leaked", path)
		}
		if w.Header().Get(TraceIDHeader) == "" {
			t.Fatalf("%s: trace header missing", path)
		}
	}
	if !strings.Contains(buf.String(), "hunter2") || !strings.Contains(buf.String(), "secret upstream detail") {
		t.Fatalf("details should be logged: %s", buf.String())
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/handled", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("written responses must be kept, got %d", w.Code)
	}
}

func TestRedactingLogger_ScrubsHeadersAndQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(TraceID(), RequestLogger(), RedactingLogger(RedactOptions{MaskHeaders: []string{TesterHeader}}))
	r.GET("/q", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/q?email=a.b@example.com&id=123e4567-e89b-12d3-a456-426614174000", nil)
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set(TesterHeader, "tester-secret")
	req.Header.Set("Cookie", "access_token=xyz")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, leaked := range []string{"a.b@example.com", "123e4567", "Bearer abc", "tester-secret", "xyz"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("log leaked %q: %s", leaked, out)
		}
	}
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "[REDACTED:email]") {
		t.Fatalf("unexpected access log: %s", out)
	}
}
