package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-testgen-gateway/internal/observability"
)

// ArtifactLRUSize bounds the in-process artifact cache.
const ArtifactLRUSize = 50

// CacheError wraps a failed store operation.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string { return fmt.Sprintf("cache %s: %v", e.Op, e.Err) }

func (e *CacheError) Unwrap() error { return e.Err }

// Engine is safe for concurrent use.
type Engine struct {
	store     Store
	artifacts *lru.Cache[string, memEntry]
	now       func() time.Time
}

// NewEngine wraps store.
func NewEngine(store Store) *Engine {
	artifacts, _ := lru.New[string, memEntry](ArtifactLRUSize)
	return &Engine{store: store, artifacts: artifacts, now: time.Now}
}

// GenerateKey is the package-level GenerateKey, exposed on the engine for
// callers that only hold an *Engine.
func (e *Engine) GenerateKey(args []string, strategy string) (string, time.Duration) {
	return GenerateKey(args, strategy)
}

// Get reads key from the store. Failures are logged and returned as
// *CacheError; callers on read paths treat them as misses.
func (e *Engine) Get(ctx context.Context, strategy, key string) (string, bool, error) {
	v, ok, err := e.store.Get(ctx, key)
	switch {
	case err != nil:
		observability.CacheLookups.WithLabelValues(strategy, "error").Inc()
		zerolog.Ctx(ctx).Warn().Err(err).Str("strategy", strategy).Msg("cache read failed")
		return "", false, &CacheError{Op: "get", Err: err}
	case ok:
		observability.CacheLookups.WithLabelValues(strategy, "hit").Inc()
	default:
		observability.CacheLookups.WithLabelValues(strategy, "miss").Inc()
	}
	return v, ok, nil
}

// SetEx writes key with ttl.
func (e *Engine) SetEx(ctx context.Context, key string, ttl time.Duration, value string) error {
	if err := e.store.SetEx(ctx, key, ttl, value); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("cache write failed")
		return &CacheError{Op: "setex", Err: err}
	}
	return nil
}

// Delete removes key from both tiers.
func (e *Engine) Delete(ctx context.Context, key string) error {
	e.artifacts.Remove(key)
	if err := e.store.Delete(ctx, key); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("cache delete failed")
		return &CacheError{Op: "delete", Err: err}
	}
	return nil
}

// Artifact looks up a generation artifact, consulting the in-process LRU
// before the shared store. Local entries expire with the TTL they were
// stored under.
func (e *Engine) Artifact(ctx context.Context, key string) (string, bool, error) {
	if a, ok := e.artifacts.Get(key); ok {
		if e.now().Before(a.expires) {
			observability.CacheLookups.WithLabelValues(StrategyGemini, "hit").Inc()
			return a.value, true, nil
		}
		e.artifacts.Remove(key)
	}
	return e.Get(ctx, StrategyGemini, key)
}

// StoreArtifact records an artifact in both tiers. The local tier is filled
// even when the shared store fails. Store hits are never copied into the
// local tier since their remaining TTL is unknown.
func (e *Engine) StoreArtifact(ctx context.Context, key string, ttl time.Duration, value string) error {
	e.artifacts.Add(key, memEntry{value: value, expires: e.now().Add(ttl)})
	return e.SetEx(ctx, key, ttl, value)
}

// Ping reports store reachability.
func (e *Engine) Ping(ctx context.Context) error { return e.store.Ping(ctx) }

// Close releases the store.
func (e *Engine) Close() error { return e.store.Close() }
