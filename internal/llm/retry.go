package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/tbourn/go-testgen-gateway/internal/observability"
)

// ErrEmptyCompletion is returned when the model ends a stream without text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// RetryPolicy bounds how a stream is (re)opened.
type RetryPolicy struct {
	Attempts uint
	Base     time.Duration
	Cap      time.Duration
}

// DefaultRetry is three attempts with exponential back-off from 2s, capped at 10s.
var DefaultRetry = RetryPolicy{Attempts: 3, Base: 2 * time.Second, Cap: 10 * time.Second}

// Opened is a stream positioned after its first non-empty delta.
type Opened struct {
	First  string
	Stream Stream
}

// Open opens req and reads up to the first non-empty delta, retrying with
// back-off while nothing has been received. Once Open returns, the caller
// owns the stream; later failures are not retried because text may already
// have been delivered downstream.
func Open(ctx context.Context, c Client, req Request, p RetryPolicy) (Opened, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.MaxInterval = p.Cap
	b.Multiplier = 2
	b.RandomizationFactor = 0.1

	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}

	op := func() (Opened, error) {
		s, err := c.Stream(ctx, req)
		if err != nil {
			return Opened{}, classify(ctx, err)
		}
		for {
			delta, err := s.Recv()
			if err != nil {
				_ = s.Close()
				if errors.Is(err, io.EOF) {
					return Opened{}, ErrEmptyCompletion
				}
				return Opened{}, classify(ctx, err)
			}
			if delta != "" {
				return Opened{First: delta, Stream: s}, nil
			}
		}
	}

	notify := func(err error, wait time.Duration) {
		observability.UpstreamAttempts.WithLabelValues("retry").Inc()
		zerolog.Ctx(ctx).Warn().Err(err).Dur("wait", wait).Str("model", req.Model).Msg("upstream stream failed; retrying")
	}

	o, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(notify),
	)
	if err != nil {
		observability.UpstreamAttempts.WithLabelValues("failed").Inc()
		return Opened{}, err
	}
	observability.UpstreamAttempts.WithLabelValues("ok").Inc()
	return o, nil
}

// classify marks errors that a retry cannot fix as permanent.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, ErrNotConfigured) {
		return backoff.Permanent(err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && permanentStatus(apiErr.HTTPStatusCode) {
		return backoff.Permanent(err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && permanentStatus(reqErr.HTTPStatusCode) {
		return backoff.Permanent(err)
	}
	return err
}

func permanentStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
