// Package services holds the business logic of the gateway: the generation
// orchestrator, the token ledger wrapper, encrypted history, webhook and ad
// reward crediting, user status and health. This file centralizes the
// service-level errors so handlers can map them to HTTP responses.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedModel is returned when a model tag is not on the allow-list.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrWebhookForbidden is returned when a webhook verification token does
	// not match the configured secret.
	ErrWebhookForbidden = errors.New("invalid verification token")

	// ErrInvalidWebhook is returned when the webhook payload cannot be decoded.
	ErrInvalidWebhook = errors.New("invalid webhook payload")

	// ErrInvalidAdReward is returned when an ad reward claim is missing fields
	// or carries an unparseable timestamp.
	ErrInvalidAdReward = errors.New("invalid ad reward")

	// ErrStaleAdReward is returned when an ad reward timestamp is too old or
	// too far in the future.
	ErrStaleAdReward = errors.New("ad reward timestamp outside the accepted window")
)

// InsufficientTokensError reports a debit the wallet cannot cover.
type InsufficientTokensError struct {
	Current  int
	Required int
}

func (e *InsufficientTokensError) Error() string {
	return fmt.Sprintf("insufficient tokens: have %d, need %d", e.Current, e.Required)
}

// DuplicateTransactionError reports a credit whose reference was already applied.
type DuplicateTransactionError struct {
	Reference string
	Current   int
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("duplicate transaction %q", e.Reference)
}

// LedgerError is an unexpected business failure reported by a wallet procedure.
type LedgerError struct {
	Procedure string
	Code      string
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Procedure, e.Code)
}
