// Package executor forwards execution tasks from the gateway to the sandbox
// worker.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
)

// Masked messages returned to callers in place of transport detail.
const (
	MsgAuthFailed  = "auth failed"
	MsgUnavailable = "execution service unavailable"
)

// Proxy posts tasks to the worker's /execute endpoint.
type Proxy struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewProxy returns a proxy for the worker at baseURL. hc is shared by every
// call and should carry the proxy timeout.
func NewProxy(baseURL, token string, hc *http.Client) *Proxy {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Proxy{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

// Execute runs task on the worker. Failures come back as a result with
// Success false and a masked Error.
func (p *Proxy) Execute(ctx context.Context, task domain.ExecutionTask) domain.ExecutionResult {
	ctx, span := otel.Tracer("executor").Start(ctx, "Execute",
		trace.WithAttributes(attribute.String("language", task.Language)))
	defer span.End()

	log := zerolog.Ctx(ctx)
	res, err := p.post(ctx, task)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Msg("execution proxy failed")
	}
	return res
}

func (p *Proxy) post(ctx context.Context, task domain.ExecutionTask) (domain.ExecutionResult, error) {
	unavailable := domain.ExecutionResult{Error: MsgUnavailable}

	body, err := json.Marshal(task)
	if err != nil {
		return unavailable, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return unavailable, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.http.Do(req)
	if err != nil {
		return unavailable, fmt.Errorf("post worker: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out domain.ExecutionResult
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return unavailable, fmt.Errorf("decode worker response: %w", err)
		}
		return out, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.ExecutionResult{Error: MsgAuthFailed}, fmt.Errorf("worker rejected credentials: status %d", resp.StatusCode)
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return unavailable, fmt.Errorf("worker status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
}

// Close releases idle connections held by the shared client.
func (p *Proxy) Close() {
	p.http.CloseIdleConnections()
}
