package handlers

import (
	"context"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
	"github.com/tbourn/go-testgen-gateway/internal/identity"
	"github.com/tbourn/go-testgen-gateway/internal/services"
	"github.com/tbourn/go-testgen-gateway/internal/strategy"
)

// Service contracts consumed by the gateway handlers. Implementations must be
// safe for concurrent use and honour ctx.

// Generator streams generated test code.
type Generator interface {
	Generate(ctx context.Context, p domain.Principal, req domain.GenerationRequest) (<-chan string, error)
}

// Executor runs generated tests, locally or through the worker.
type Executor interface {
	Execute(ctx context.Context, task domain.ExecutionTask) domain.ExecutionResult
}

// AdRewarder credits rewarded ad views.
type AdRewarder interface {
	Claim(ctx context.Context, userID, network, transactionID, timestamp string) (services.AdRewardResult, error)
}

// WebhookIngester applies payment events.
type WebhookIngester interface {
	Ingest(ctx context.Context, ev services.KofiEvent) (services.WebhookOutcome, error)
}

// HistoryLister reads a user's decrypted history.
type HistoryLister interface {
	List(ctx context.Context, userID string, limit int) ([]domain.HistoryItem, error)
}

// StatusReporter reports weekly usage.
type StatusReporter interface {
	Status(ctx context.Context, p domain.Principal) (services.UserStatus, error)
}

// TokenReader reads (and bootstraps) a wallet.
type TokenReader interface {
	TokenInfo(ctx context.Context, userID string) (domain.TokenInfo, error)
}

// HealthChecker probes dependencies.
type HealthChecker interface {
	Check(ctx context.Context) services.HealthReport
}

// AuthProvider is the identity provider's login API.
type AuthProvider interface {
	Configured() bool
	AuthorizeURL(provider, redirectTo, challenge string) string
	ExchangeCode(ctx context.Context, code, verifier string) (identity.Session, error)
	Logout(ctx context.Context, accessToken string) error
}

// Handlers groups the gateway endpoints. Nil collaborators are not allowed
// for the routes that are mounted.
type Handlers struct {
	Generator  Generator
	Executor   Executor
	AdRewards  AdRewarder
	Webhooks   WebhookIngester
	History    HistoryLister
	Status     StatusReporter
	Tokens     TokenReader
	Health     HealthChecker
	Auth       AuthProvider
	Strategies *strategy.Registry

	PublicURL    string // gateway origin used for the OAuth redirect
	FrontendURL  string // where the browser lands after login
	SecureCookie bool
}

// requestValidate checks request DTOs. Gin's own binding validator only
// covers "binding" tags; these use "validate".
var requestValidate = newValidator()

// langTagRE accepts tags such as "Python", "javascript", "c++" or "c#".
var langTagRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+#. -]{0,31}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("langtag", func(fl validator.FieldLevel) bool {
		return langTagRE.MatchString(fl.Field().String())
	})
	return v
}

// firstInvalidField names the first field that failed validation.
func firstInvalidField(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return verrs[0].Field()
	}
	return "body"
}
