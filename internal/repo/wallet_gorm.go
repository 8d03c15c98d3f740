package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
)

// GormWallet implements the wallet procedures as GORM transactions for
// databases without stored procedures (SQLite in development and tests).
// Results match the Postgres functions field for field.
type GormWallet struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormWallet returns a wallet bound to db.
func NewGormWallet(db *gorm.DB) *GormWallet {
	return &GormWallet{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var errDuplicateReference = errors.New("duplicate reference")

func (w *GormWallet) balance(tx *gorm.DB, userID string) (int, bool, error) {
	var wl domain.Wallet
	err := tx.Where("user_id = ?", userID).Take(&wl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return wl.Balance, true, nil
}

func (w *GormWallet) appendEntry(tx *gorm.DB, userID string, amount int, kind, desc string, ref *string, after int) error {
	return tx.Create(&domain.LedgerEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		Amount:       amount,
		Kind:         kind,
		Description:  desc,
		ReferenceID:  ref,
		BalanceAfter: after,
		CreatedAt:    w.now(),
	}).Error
}

func (w *GormWallet) InitializeUserWallet(ctx context.Context, userID string, welcome int, description string) (WalletResult, error) {
	var res WalletResult
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bal, ok, err := w.balance(tx, userID)
		if err != nil {
			return err
		}
		if ok {
			res = succeeded(bal)
			return nil
		}
		now := w.now()
		if err := tx.Create(&domain.Wallet{UserID: userID, Balance: welcome, CreatedAt: now, UpdatedAt: now}).Error; err != nil {
			return err
		}
		if err := w.appendEntry(tx, userID, welcome, domain.KindWelcome, description, nil, welcome); err != nil {
			return err
		}
		res = succeeded(welcome)
		res.Created = true
		return nil
	})
	if err != nil && isUniqueViolation(err) {
		// Lost a creation race; the other caller granted the welcome.
		return w.InitializeUserWallet(ctx, userID, welcome, description)
	}
	return res, err
}

func (w *GormWallet) ClaimDailyBonus(ctx context.Context, userID string, amount int) (WalletResult, error) {
	var res WalletResult
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wl domain.Wallet
		err := tx.Where("user_id = ?", userID).Take(&wl).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res = failed(CodeWalletNotFound, 0)
			return nil
		}
		if err != nil {
			return err
		}
		now := w.now()
		dayStart := now.Truncate(24 * time.Hour)
		if wl.LastDailyBonusAt != nil && !wl.LastDailyBonusAt.UTC().Before(dayStart) {
			res = WalletResult{AlreadyClaimed: true, CurrentBalance: wl.Balance}
			return nil
		}
		after := wl.Balance + amount
		upd := tx.Model(&domain.Wallet{}).
			Where("user_id = ? AND balance = ?", userID, wl.Balance).
			Updates(map[string]any{"balance": after, "last_daily_bonus_at": now, "updated_at": now})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return errors.New("claim_daily_bonus: concurrent wallet update")
		}
		if err := w.appendEntry(tx, userID, amount, domain.KindDailyBonus, descDailyBonus, nil, after); err != nil {
			return err
		}
		res = succeeded(after)
		return nil
	})
	return res, err
}

func (w *GormWallet) DeductTokens(ctx context.Context, userID string, amount int) (WalletResult, error) {
	var res WalletResult
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upd := tx.Model(&domain.Wallet{}).
			Where("user_id = ? AND balance >= ?", userID, amount).
			Updates(map[string]any{"balance": gorm.Expr("balance - ?", amount), "updated_at": w.now()})
		if upd.Error != nil {
			return upd.Error
		}
		bal, _, err := w.balance(tx, userID)
		if err != nil {
			return err
		}
		if upd.RowsAffected == 0 {
			res = failed(CodeInsufficientTokens, bal)
			return nil
		}
		if err := w.appendEntry(tx, userID, -amount, domain.KindGenerationDebit, descGenerationDebit, nil, bal); err != nil {
			return err
		}
		res = succeeded(bal)
		return nil
	})
	return res, err
}

func (w *GormWallet) AddTokens(ctx context.Context, userID string, amount int, kind, description string, referenceID *string) (WalletResult, error) {
	var res WalletResult
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if referenceID != nil {
			var n int64
			if err := tx.Model(&domain.LedgerEntry{}).
				Where("user_id = ? AND reference_id = ?", userID, *referenceID).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return errDuplicateReference
			}
		}
		now := w.now()
		upd := tx.Model(&domain.Wallet{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{"balance": gorm.Expr("balance + ?", amount), "updated_at": now})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			if err := tx.Create(&domain.Wallet{UserID: userID, Balance: amount, CreatedAt: now, UpdatedAt: now}).Error; err != nil {
				return err
			}
		}
		bal, _, err := w.balance(tx, userID)
		if err != nil {
			return err
		}
		if err := w.appendEntry(tx, userID, amount, kind, description, referenceID, bal); err != nil {
			if isUniqueViolation(err) {
				return errDuplicateReference
			}
			return err
		}
		res = succeeded(bal)
		return nil
	})
	if errors.Is(err, errDuplicateReference) {
		bal, _, berr := w.balance(w.db.WithContext(ctx), userID)
		if berr != nil {
			return WalletResult{}, berr
		}
		return failed(CodeDuplicateTransaction, bal), nil
	}
	return res, err
}

func (w *GormWallet) RefundTokens(ctx context.Context, userID string, amount int) (WalletResult, error) {
	var res WalletResult
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upd := tx.Model(&domain.Wallet{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{"balance": gorm.Expr("balance + ?", amount), "updated_at": w.now()})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			res = failed(CodeWalletNotFound, 0)
			return nil
		}
		bal, _, err := w.balance(tx, userID)
		if err != nil {
			return err
		}
		if err := w.appendEntry(tx, userID, amount, domain.KindRefund, descRefund, nil, bal); err != nil {
			return err
		}
		res = succeeded(bal)
		return nil
	})
	return res, err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
