// Package cache implements the fingerprint-keyed cache engine.
//
// Keys are derived from a strategy prefix and the cached call's arguments;
// each strategy carries its own TTL. The engine fronts a shared Store (Redis
// in production, an in-process LRU otherwise) with a small in-process LRU for
// immutable generation artifacts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Strategy prefixes.
const (
	StrategyGemini     = "gemini"
	StrategyHistory    = "history"
	StrategyValidation = "validation"
)

// DefaultTTL applies to strategies missing from the TTL table.
const DefaultTTL = time.Hour

var ttlTable = map[string]time.Duration{
	StrategyGemini:     7200 * time.Second,
	StrategyHistory:    1800 * time.Second,
	StrategyValidation: 86400 * time.Second,
}

// TTLFor returns the TTL for strategy.
func TTLFor(strategy string) time.Duration {
	if ttl, ok := ttlTable[strategy]; ok {
		return ttl
	}
	return DefaultTTL
}

// GenerateKey returns hex(sha256(strategy + ":" + args joined by ":")) and
// the strategy's TTL.
func GenerateKey(args []string, strategy string) (string, time.Duration) {
	sum := sha256.Sum256([]byte(strategy + ":" + strings.Join(args, ":")))
	return hex.EncodeToString(sum[:]), TTLFor(strategy)
}
