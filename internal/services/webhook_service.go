package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-testgen-gateway/internal/config"
	"github.com/tbourn/go-testgen-gateway/internal/domain"
	"github.com/tbourn/go-testgen-gateway/internal/sysutil"
)

// Ko-fi event types.
const (
	KofiDonation     = "Donation"
	KofiSubscription = "Subscription"
	KofiShopOrder    = "Shop Order"
	KofiCommission   = "Commission"
)

// KofiEvent is the JSON document Ko-fi posts in the "data" form field.
type KofiEvent struct {
	VerificationToken          string `json:"verification_token"`
	MessageID                  string `json:"message_id"`
	Timestamp                  string `json:"timestamp"`
	Type                       string `json:"type"`
	FromName                   string `json:"from_name"`
	Amount                     string `json:"amount"`
	Email                      string `json:"email"`
	Currency                   string `json:"currency"`
	IsSubscriptionPayment      bool   `json:"is_subscription_payment"`
	IsFirstSubscriptionPayment bool   `json:"is_first_subscription_payment"`
	KofiTransactionID          string `json:"kofi_transaction_id"`
	TierName                   string `json:"tier_name"`
}

// UserDirectory resolves a payer email to a user id.
type UserDirectory interface {
	LookupByEmail(ctx context.Context, email string) (userID string, found bool, err error)
}

// Crediter applies idempotent credits.
type Crediter interface {
	Credit(ctx context.Context, userID string, amount int, kind, description, reference string) (int, error)
}

// WebhookOutcome is the JSON body returned to Ko-fi.
type WebhookOutcome struct {
	Status      string `json:"status"`
	TokensAdded int    `json:"tokens_added"`
	Note        string `json:"note,omitempty"`
}

// WebhookService ingests Ko-fi payment events.
type WebhookService struct {
	Ledger            Crediter
	Users             UserDirectory
	VerificationToken string
	Economy           config.EconomyConfig
}

// ParseKofiPayload decodes the form field value.
func ParseKofiPayload(data string) (KofiEvent, error) {
	var ev KofiEvent
	if strings.TrimSpace(data) == "" {
		return ev, ErrInvalidWebhook
	}
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return ev, ErrInvalidWebhook
	}
	return ev, nil
}

// TokensFor maps an event to a token grant and ledger kind.
func TokensFor(ev KofiEvent, econ config.EconomyConfig) (int, string) {
	paid, _ := strconv.ParseFloat(strings.TrimSpace(ev.Amount), 64)
	switch ev.Type {
	case KofiSubscription:
		return econ.SubscriptionTokens, domain.KindKofiSubscription
	case KofiDonation:
		if n, ok := tierFor(paid, econ.Tiers); ok {
			return n, domain.KindKofiDonation
		}
		return econ.DonationDefaultTokens, domain.KindKofiDonation
	case KofiShopOrder:
		if n, ok := tierFor(paid, econ.Tiers); ok {
			return n, domain.KindKofiPurchase
		}
		return 0, domain.KindKofiPurchase
	}
	return 0, ""
}

// tierFor picks the largest tier whose threshold is covered by paid.
// tiers is sorted by threshold, highest first.
func tierFor(paid float64, tiers []config.Tier) (int, bool) {
	for _, t := range tiers {
		if paid >= t.Threshold {
			return t.Tokens, true
		}
	}
	return 0, false
}

// Ingest verifies and applies one event. Only a verification failure is
// an error; every other path yields an outcome so Ko-fi stops retrying.
func (s *WebhookService) Ingest(ctx context.Context, ev KofiEvent) (WebhookOutcome, error) {
	tr := otel.Tracer("services/WebhookService")
	ctx, span := tr.Start(ctx, "Ingest", trace.WithAttributes(
		attribute.String("kofi.type", ev.Type),
		attribute.String("kofi.transaction_id", ev.KofiTransactionID),
	))
	defer span.End()
	log := zerolog.Ctx(ctx)

	if !sysutil.SecretEqual(ev.VerificationToken, s.VerificationToken) {
		return WebhookOutcome{}, ErrWebhookForbidden
	}

	tokens, kind := TokensFor(ev, s.Economy)
	if tokens <= 0 {
		log.Info().Str("type", ev.Type).Str("amount", ev.Amount).Msg("kofi event grants no tokens")
		return WebhookOutcome{Status: "ok", Note: "no tokens for event"}, nil
	}

	email := strings.TrimSpace(ev.Email)
	if email == "" {
		return WebhookOutcome{Status: "ok", Note: "no match"}, nil
	}
	userID, found, err := s.Users.LookupByEmail(ctx, email)
	if err != nil {
		return WebhookOutcome{}, err
	}
	if !found {
		log.Warn().Str("type", ev.Type).Msg("kofi payer has no account")
		return WebhookOutcome{Status: "ok", Note: "no match"}, nil
	}

	var ref string
	if ev.KofiTransactionID != "" {
		ref = "kofi_" + ev.KofiTransactionID
	}
	desc := "Ko-fi " + strings.ToLower(ev.Type)
	if ev.TierName != "" {
		desc += " (" + ev.TierName + ")"
	}
	_, err = s.Ledger.Credit(ctx, userID, tokens, kind, desc, ref)
	var dup *DuplicateTransactionError
	if errors.As(err, &dup) {
		log.Info().Str("reference", ref).Msg("kofi event already applied")
		return WebhookOutcome{Status: "ok", Note: "duplicate"}, nil
	}
	if err != nil {
		return WebhookOutcome{}, err
	}
	log.Info().Str("user_id", userID).Int("tokens", tokens).Str("kind", kind).Msg("kofi credit applied")
	return WebhookOutcome{Status: "ok", TokensAdded: tokens}, nil
}
