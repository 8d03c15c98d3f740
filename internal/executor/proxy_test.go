package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
)

func TestProxy_PassesThroughWorkerResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/execute", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var task domain.ExecutionTask
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&task))
		assert.Equal(t, "python", task.Language)
		_ = json.NewEncoder(w).Encode(domain.ExecutionResult{Success: false, Output: "1 failed", Error: "tests failed (exit code 1)"})
	}))
	defer srv.Close()

	p := NewProxy(srv.URL+"/", "tok", srv.Client())
	defer p.Close()
	res := p.Execute(context.Background(), domain.ExecutionTask{InputCode: "x", TestCode: "y", Language: "python"})
	assert.Equal(t, domain.ExecutionResult{Output: "1 failed", Error: "tests failed (exit code 1)"}, res)
}

func TestProxy_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   string
	}{
		{http.StatusUnauthorized, MsgAuthFailed},
		{http.StatusForbidden, MsgAuthFailed},
		{http.StatusInternalServerError, MsgUnavailable},
		{http.StatusBadGateway, MsgUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "secret internal detail", tc.status)
		}))
		res := NewProxy(srv.URL, "tok", srv.Client()).Execute(context.Background(), domain.ExecutionTask{Language: "python"})
		srv.Close()
		assert.False(t, res.Success)
		assert.Equal(t, tc.want, res.Error, "status %d", tc.status)
		assert.NotContains(t, res.Error, "secret")
	}
}

func TestProxy_TransportFailureIsMasked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	hc := &http.Client{Timeout: 20 * time.Millisecond}
	res := NewProxy(srv.URL, "tok", hc).Execute(context.Background(), domain.ExecutionTask{Language: "python"})
	assert.Equal(t, domain.ExecutionResult{Error: MsgUnavailable}, res)
}

func TestProxy_BadJSONIsMasked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	res := NewProxy(srv.URL, "tok", nil).Execute(context.Background(), domain.ExecutionTask{Language: "python"})
	assert.Equal(t, MsgUnavailable, res.Error)
}
