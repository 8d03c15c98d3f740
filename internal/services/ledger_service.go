package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
	"github.com/tbourn/go-testgen-gateway/internal/observability"
	"github.com/tbourn/go-testgen-gateway/internal/repo"
)

// WalletProcedures are the five named wallet operations. Implementations
// live in repo (Postgres functions or GORM transactions).
type WalletProcedures interface {
	InitializeUserWallet(ctx context.Context, userID string, welcome int, description string) (repo.WalletResult, error)
	ClaimDailyBonus(ctx context.Context, userID string, amount int) (repo.WalletResult, error)
	DeductTokens(ctx context.Context, userID string, amount int) (repo.WalletResult, error)
	AddTokens(ctx context.Context, userID string, amount int, kind, description string, referenceID *string) (repo.WalletResult, error)
	RefundTokens(ctx context.Context, userID string, amount int) (repo.WalletResult, error)
}

const welcomeDescription = "Welcome bonus"

// LedgerService wraps the wallet procedures with typed errors and metrics.
type LedgerService struct {
	Wallet           WalletProcedures
	WelcomeTokens    int
	DailyBonusTokens int

	bootstrap singleflight.Group
}

func observeLedger(proc string, res repo.WalletResult, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case !res.Success:
		outcome = "rejected"
	}
	observability.LedgerOperations.WithLabelValues(proc, outcome).Inc()
}

func startLedgerSpan(ctx context.Context, op, userID string) (context.Context, trace.Span) {
	return otel.Tracer("services/LedgerService").Start(ctx, op,
		trace.WithAttributes(attribute.String("user.id", userID)))
}

// ensureWallet runs initialize_user_wallet once per concurrent burst for a user.
func (s *LedgerService) ensureWallet(ctx context.Context, userID string) (repo.WalletResult, error) {
	v, err, _ := s.bootstrap.Do(userID, func() (any, error) {
		res, err := s.Wallet.InitializeUserWallet(ctx, userID, s.WelcomeTokens, welcomeDescription)
		observeLedger(repo.ProcInitializeUserWallet, res, err)
		return res, err
	})
	if err != nil {
		return repo.WalletResult{}, err
	}
	return v.(repo.WalletResult), nil
}

// TokenInfo bootstraps the wallet, claims the daily bonus when due, and
// returns the resulting balance.
func (s *LedgerService) TokenInfo(ctx context.Context, userID string) (domain.TokenInfo, error) {
	ctx, span := startLedgerSpan(ctx, "TokenInfo", userID)
	defer span.End()

	boot, err := s.ensureWallet(ctx, userID)
	if err != nil {
		return domain.TokenInfo{}, err
	}
	info := domain.TokenInfo{Balance: boot.CurrentBalance, WelcomeGranted: boot.Created}

	bonus, err := s.Wallet.ClaimDailyBonus(ctx, userID, s.DailyBonusTokens)
	observeLedger(repo.ProcClaimDailyBonus, bonus, err)
	if err != nil {
		return domain.TokenInfo{}, err
	}
	switch {
	case bonus.Success:
		info.DailyBonusClaimed = true
		info.Balance = bonus.CurrentBalance
	case bonus.AlreadyClaimed:
		info.Balance = bonus.CurrentBalance
	default:
		return domain.TokenInfo{}, &LedgerError{Procedure: repo.ProcClaimDailyBonus, Code: bonus.Error}
	}
	return info, nil
}

// Deduct debits amount, creating the wallet first for callers that have never
// fetched their token info. A shortfall is reported as *InsufficientTokensError.
func (s *LedgerService) Deduct(ctx context.Context, userID string, amount int) (int, error) {
	ctx, span := startLedgerSpan(ctx, "Deduct", userID)
	defer span.End()

	if _, err := s.ensureWallet(ctx, userID); err != nil {
		return 0, err
	}
	res, err := s.Wallet.DeductTokens(ctx, userID, amount)
	observeLedger(repo.ProcDeductTokens, res, err)
	if err != nil {
		return 0, err
	}
	if !res.Success {
		if res.Error == repo.CodeInsufficientTokens {
			return res.CurrentBalance, &InsufficientTokensError{Current: res.CurrentBalance, Required: amount}
		}
		return res.CurrentBalance, &LedgerError{Procedure: repo.ProcDeductTokens, Code: res.Error}
	}
	return res.CurrentBalance, nil
}

// Credit adds amount with an optional idempotency reference. A replayed
// reference is reported as *DuplicateTransactionError carrying the balance.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount int, kind, description, reference string) (int, error) {
	ctx, span := startLedgerSpan(ctx, "Credit", userID)
	defer span.End()
	span.SetAttributes(attribute.String("ledger.kind", kind), attribute.Int("ledger.amount", amount))

	var ref *string
	if reference != "" {
		ref = &reference
	}
	res, err := s.Wallet.AddTokens(ctx, userID, amount, kind, description, ref)
	observeLedger(repo.ProcAddTokens, res, err)
	if err != nil {
		return 0, err
	}
	if !res.Success {
		if res.Error == repo.CodeDuplicateTransaction {
			return res.CurrentBalance, &DuplicateTransactionError{Reference: reference, Current: res.CurrentBalance}
		}
		return res.CurrentBalance, &LedgerError{Procedure: repo.ProcAddTokens, Code: res.Error}
	}
	return res.CurrentBalance, nil
}

// Refund restores amount after a failed generation. It outlives the caller's
// context so a disconnecting client is still made whole.
func (s *LedgerService) Refund(ctx context.Context, userID string, amount int) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	ctx, span := startLedgerSpan(ctx, "Refund", userID)
	defer span.End()

	res, err := s.Wallet.RefundTokens(ctx, userID, amount)
	observeLedger(repo.ProcRefundTokens, res, err)
	if err != nil {
		return err
	}
	if !res.Success {
		return &LedgerError{Procedure: repo.ProcRefundTokens, Code: res.Error}
	}
	zerolog.Ctx(ctx).Info().Str("user_id", userID).Int("amount", amount).Int("balance", res.CurrentBalance).Msg("generation refunded")
	return nil
}
