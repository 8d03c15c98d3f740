package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// PostgresWallet invokes the plpgsql wallet procedures installed by
// RunMigrations. Each call is a single statement; atomicity lives in the
// database.
type PostgresWallet struct {
	db *gorm.DB
}

// NewPostgresWallet returns a wallet bound to db.
func NewPostgresWallet(db *gorm.DB) *PostgresWallet { return &PostgresWallet{db: db} }

// Arguments are cast explicitly so pgx parameter types resolve the overload.
func (w *PostgresWallet) call(ctx context.Context, proc, args string, vals ...any) (WalletResult, error) {
	var raw string
	q := fmt.Sprintf("SELECT %s(%s)::text", proc, args)
	if err := w.db.WithContext(ctx).Raw(q, vals...).Row().Scan(&raw); err != nil {
		return WalletResult{}, fmt.Errorf("%s: %w", proc, err)
	}
	var res WalletResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return WalletResult{}, fmt.Errorf("%s: decode result: %w", proc, err)
	}
	return res, nil
}

func (w *PostgresWallet) InitializeUserWallet(ctx context.Context, userID string, welcome int, description string) (WalletResult, error) {
	return w.call(ctx, ProcInitializeUserWallet, "?::text, ?::integer, ?::text", userID, welcome, description)
}

func (w *PostgresWallet) ClaimDailyBonus(ctx context.Context, userID string, amount int) (WalletResult, error) {
	return w.call(ctx, ProcClaimDailyBonus, "?::text, ?::integer", userID, amount)
}

func (w *PostgresWallet) DeductTokens(ctx context.Context, userID string, amount int) (WalletResult, error) {
	return w.call(ctx, ProcDeductTokens, "?::text, ?::integer", userID, amount)
}

func (w *PostgresWallet) AddTokens(ctx context.Context, userID string, amount int, kind, description string, referenceID *string) (WalletResult, error) {
	return w.call(ctx, ProcAddTokens, "?::text, ?::integer, ?::text, ?::text, ?::text", userID, amount, kind, description, referenceID)
}

func (w *PostgresWallet) RefundTokens(ctx context.Context, userID string, amount int) (WalletResult, error) {
	return w.call(ctx, ProcRefundTokens, "?::text, ?::integer", userID, amount)
}
