// Package strategy holds the per-language validation and prompt strategies.
//
// A Strategy bundles a syntactic pre-filter run before any upstream call with
// the system instruction sent to the model. Strategies are immutable values;
// the Registry hands out one shared instance per language tag.
package strategy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Verdict is the outcome of validating a snippet.
type Verdict struct {
	Valid  bool
	Reason string
}

// Valid returns a passing verdict.
func Valid() Verdict { return Verdict{Valid: true} }

// Invalid returns a failing verdict with a user-facing reason.
func Invalid(reason string) Verdict { return Verdict{Reason: reason} }

// reasonEmpty is shared by every strategy.
const reasonEmpty = "input code is empty"

// UnsupportedLanguageError is returned for tags with no registered strategy.
type UnsupportedLanguageError struct {
	Tag string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language: %q", e.Tag)
}

// Strategy is the language-specific behaviour used by the generation flow.
type Strategy struct {
	// Tag is the canonical lower-case tag ("python", "javascript", "java").
	Tag string
	// Name is the display name ("Python").
	Name string
	// Syntax is the highlighter identifier used by clients.
	Syntax string
	// Placeholder is a sample snippet clients show in an empty editor.
	Placeholder string
	// Framework names the test framework the prompt targets.
	Framework string
	// CacheVerdicts marks validators expensive enough to memoize.
	CacheVerdicts bool

	instruction string
	validate    func(ctx context.Context, src string) Verdict
}

// Validate runs the pre-filter. Empty or whitespace-only input is always
// rejected before the language-specific rules.
func (s *Strategy) Validate(ctx context.Context, src string) Verdict {
	if strings.TrimSpace(src) == "" {
		return Invalid(reasonEmpty)
	}
	return s.validate(ctx, src)
}

// SystemInstruction returns the static prompt for this language.
func (s *Strategy) SystemInstruction() string { return s.instruction }

// Registry resolves language tags to strategies.
type Registry struct {
	byTag map[string]*Strategy
	fold  cases.Caser
}

// NewRegistry returns a registry with the Python, JavaScript and Java
// strategies installed.
func NewRegistry() *Registry {
	r := &Registry{byTag: map[string]*Strategy{}, fold: cases.Fold()}
	for _, s := range []*Strategy{newPython(), newJavaScript(), newJava()} {
		r.register(s)
	}
	r.alias("py", "python")
	r.alias("js", "javascript")
	return r
}

func (r *Registry) register(s *Strategy) { r.byTag[s.Tag] = s }

func (r *Registry) alias(alias, tag string) { r.byTag[alias] = r.byTag[tag] }

// StrategyFor returns the strategy for tag, matched case-insensitively.
func (r *Registry) StrategyFor(tag string) (*Strategy, error) {
	key := r.fold.String(strings.TrimSpace(tag))
	if s, ok := r.byTag[key]; ok {
		return s, nil
	}
	return nil, &UnsupportedLanguageError{Tag: tag}
}

// All returns the distinct strategies ordered by tag.
func (r *Registry) All() []*Strategy {
	seen := map[*Strategy]struct{}{}
	out := make([]*Strategy, 0, len(r.byTag))
	for _, s := range r.byTag {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}
