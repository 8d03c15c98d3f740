package services

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-testgen-gateway/internal/cache"
	"github.com/tbourn/go-testgen-gateway/internal/domain"
	"github.com/tbourn/go-testgen-gateway/internal/llm"
	"github.com/tbourn/go-testgen-gateway/internal/strategy"
	"github.com/tbourn/go-testgen-gateway/internal/stream"
)

// Biller charges and refunds generations.
type Biller interface {
	Deduct(ctx context.Context, userID string, amount int) (int, error)
	Refund(ctx context.Context, userID string, amount int) error
}

// HistoryRecorder persists completed generations.
type HistoryRecorder interface {
	Record(ctx context.Context, userID, language, model, input, output string) (domain.HistoryItem, error)
}

// In-band error prefix for the generation stream.
const errorPrefix = "ERROR: "

const (
	msgUpstreamUnavailable = "the model is unavailable right now, please try again"
	msgEmptyCompletion     = "the model returned an empty response, please try again"
	msgUnsupportedModel    = "unsupported model"
)

// regenerateTemperature is applied when the caller asks for a fresh answer.
const regenerateTemperature float32 = 0.7

const verdictOK = "ok"

// Generator is the generation orchestrator. It validates input, serves cache
// hits, charges misses, coalesces concurrent identical requests into one
// upstream stream and persists completed artifacts.
type Generator struct {
	Strategies *strategy.Registry
	Cache      *cache.Engine
	LLM        llm.Client
	Flights    *stream.Group
	Billing    Biller          // optional; nil disables charging
	History    HistoryRecorder // optional
	Retry      llm.RetryPolicy

	AllowedModels []string
	DefaultModel  string
	Cost          int

	pending sync.WaitGroup
}

// single returns a closed channel carrying one chunk.
func single(chunk string) <-chan string {
	ch := make(chan string, 1)
	ch <- chunk
	close(ch)
	return ch
}

// Generate returns the chunk stream for req. Validation problems and upstream
// failures are delivered in-band as "ERROR: ..." chunks. The only errors
// returned are those that must prevent the stream from starting: a
// shortfall (*InsufficientTokensError) or a ledger failure.
//
// The channel is closed when the stream ends. Cancelling ctx stops delivery;
// a caller that stops early is refunded.
func (g *Generator) Generate(ctx context.Context, p domain.Principal, req domain.GenerationRequest) (<-chan string, error) {
	tr := otel.Tracer("services/Generator")
	ctx, span := tr.Start(ctx, "Generate", trace.WithAttributes(
		attribute.String("user.id", p.ID),
		attribute.String("language", req.LanguageTag),
		attribute.Bool("regenerate", req.IsRegenerate),
	))
	defer span.End()

	strat, err := g.Strategies.StrategyFor(req.LanguageTag)
	if err != nil {
		return single(errorPrefix + err.Error()), nil
	}
	if v := g.validate(ctx, strat, req.SourceCode); !v.Valid {
		span.SetAttributes(attribute.String("validation.reason", v.Reason))
		return single(errorPrefix + v.Reason), nil
	}

	model, err := g.resolveModel(req.Model)
	if err != nil {
		return single(errorPrefix + msgUnsupportedModel), nil
	}
	span.SetAttributes(attribute.String("model", model))

	key, ttl := g.Cache.GenerateKey([]string{model, req.SourceCode, strat.SystemInstruction()}, cache.StrategyGemini)

	if !req.IsRegenerate {
		if artifact, ok, _ := g.Cache.Artifact(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return single(artifact), nil
		}
	}

	charged := 0
	if g.Billing != nil && g.Cost > 0 {
		if _, err := g.Billing.Deduct(ctx, p.ID, g.Cost); err != nil {
			return nil, err
		}
		charged = g.Cost
	}

	job := generationJob{
		principal: p,
		language:  strat.Tag,
		model:     model,
		source:    req.SourceCode,
		charged:   charged,
	}

	flightKey := key
	if req.IsRegenerate {
		// A regeneration must not be answered by a plain request's stream.
		flightKey = key + ":regenerate"
	}
	sub, leader := g.Flights.Join(ctx, flightKey, g.producer(llm.Request{
		Model:        model,
		SystemPrompt: strat.SystemInstruction(),
		UserContent:  req.SourceCode,
		Temperature:  temperatureFor(req.IsRegenerate),
	}, key, ttl))
	span.SetAttributes(attribute.Bool("flight.leader", leader))

	out := make(chan string)
	go g.pump(ctx, sub, out, job)
	return out, nil
}

// Wait blocks until detached history writes finish or ctx ends.
func (g *Generator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func temperatureFor(regenerate bool) *float32 {
	if !regenerate {
		return nil
	}
	t := regenerateTemperature
	return &t
}

func (g *Generator) resolveModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return g.DefaultModel, nil
	}
	if model == g.DefaultModel || slices.Contains(g.AllowedModels, model) {
		return model, nil
	}
	return "", ErrUnsupportedModel
}

// validate runs the strategy pre-filter, memoizing verdicts for strategies
// that parse. Cache failures fall through to a fresh validation.
func (g *Generator) validate(ctx context.Context, s *strategy.Strategy, src string) strategy.Verdict {
	if !s.CacheVerdicts || strings.TrimSpace(src) == "" {
		return s.Validate(ctx, src)
	}
	key, ttl := g.Cache.GenerateKey([]string{s.Tag, src}, cache.StrategyValidation)
	if v, ok, _ := g.Cache.Get(ctx, cache.StrategyValidation, key); ok {
		if v == verdictOK {
			return strategy.Valid()
		}
		return strategy.Invalid(v)
	}
	verdict := s.Validate(ctx, src)
	val := verdictOK
	if !verdict.Valid {
		val = verdict.Reason
	}
	_ = g.Cache.SetEx(ctx, key, ttl, val)
	return verdict
}

// producer streams one upstream completion into the flight and stores the
// artifact once it completes.
func (g *Generator) producer(req llm.Request, key string, ttl time.Duration) stream.Producer {
	return func(ctx context.Context, emit func(string)) error {
		opened, err := llm.Open(ctx, g.LLM, req, g.Retry)
		if err != nil {
			return err
		}
		defer opened.Stream.Close()

		var sb strings.Builder
		emit(opened.First)
		sb.WriteString(opened.First)
		for {
			delta, err := opened.Stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			if delta == "" {
				continue
			}
			emit(delta)
			sb.WriteString(delta)
		}

		if sb.Len() > 0 {
			if err := g.Cache.StoreArtifact(ctx, key, ttl, sb.String()); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("artifact cache write failed")
			}
		}
		return nil
	}
}

type generationJob struct {
	principal domain.Principal
	language  string
	model     string
	source    string
	charged   int
}

// pump forwards one subscription to out, then settles the subscriber:
// history on success, refund otherwise.
func (g *Generator) pump(ctx context.Context, sub *stream.Subscription, out chan<- string, job generationJob) {
	defer close(out)
	defer sub.Close()
	log := zerolog.Ctx(ctx)

	var sb strings.Builder
	for {
		chunk, err := sub.Next(ctx)
		if err == nil {
			select {
			case out <- chunk:
				sb.WriteString(chunk)
				continue
			case <-ctx.Done():
				err = ctx.Err()
			}
		}

		switch {
		case errors.Is(err, io.EOF):
			g.recordHistory(ctx, job, sb.String())
		case ctx.Err() != nil:
			log.Info().Str("user_id", job.principal.ID).Msg("client left before generation completed")
			g.refund(ctx, job)
		default:
			log.Error().Err(err).Str("model", job.model).Msg("generation failed")
			msg := msgUpstreamUnavailable
			if errors.Is(err, llm.ErrEmptyCompletion) {
				msg = msgEmptyCompletion
			}
			select {
			case out <- "\n" + errorPrefix + msg:
			case <-ctx.Done():
			}
			g.refund(ctx, job)
		}
		return
	}
}

func (g *Generator) refund(ctx context.Context, job generationJob) {
	if g.Billing == nil || job.charged == 0 {
		return
	}
	if err := g.Billing.Refund(ctx, job.principal.ID, job.charged); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", job.principal.ID).Int("amount", job.charged).Msg("refund failed")
	}
}

// recordHistory writes the generation in the background; it completes even
// when the request has already ended.
func (g *Generator) recordHistory(ctx context.Context, job generationJob, output string) {
	if g.History == nil || output == "" {
		return
	}
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if _, err := g.History.Record(hctx, job.principal.ID, job.language, job.model, job.source, output); err != nil {
			zerolog.Ctx(hctx).Error().Err(err).Str("user_id", job.principal.ID).Msg("history write failed")
		}
	}()
}
