// Package domain defines the persistence models for generation history and
// the token wallet, plus the transient request/response types shared by the
// gateway and the sandbox worker.
package domain

import (
	"time"
)

// HistoryRecord is one persisted generation. Input and output are stored only
// as Fernet tokens; plaintext never reaches the database.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owner; indexed together with CreatedAt for newest-first reads.
//   - Language / Model: canonical language tag and upstream model used.
//   - EncryptedInput / EncryptedOutput: Fernet tokens of source and artifact.
type HistoryRecord struct {
	ID              string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID          string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_history_user_created,priority:1"`
	Language        string    `json:"language"   gorm:"type:varchar(32);not null"`
	Model           string    `json:"model"      gorm:"type:varchar(64);not null"`
	EncryptedInput  string    `json:"-"          gorm:"column:input_code;type:text;not null"`
	EncryptedOutput string    `json:"-"          gorm:"column:generated_code;type:text;not null"`
	CreatedAt       time.Time `json:"created_at" gorm:"index:idx_history_user_created,priority:2"`
}

// TableName returns the database table name for HistoryRecord.
func (HistoryRecord) TableName() string { return "generation_history" }

// Wallet is the per-user token balance. LastDailyBonusAt records the UTC
// instant of the most recent daily bonus grant.
type Wallet struct {
	UserID           string     `json:"user_id"  gorm:"type:varchar(64);primaryKey"`
	Balance          int        `json:"balance"  gorm:"not null;default:0;check:balance >= 0"`
	LastDailyBonusAt *time.Time `json:"last_daily_bonus_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Wallet.
func (Wallet) TableName() string { return "user_tokens" }

// LedgerEntry is an append-only record of a balance change. (UserID,
// ReferenceID) is unique when ReferenceID is present, which makes external
// credits idempotent.
type LedgerEntry struct {
	ID           string    `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID       string    `json:"user_id"      gorm:"type:varchar(64);not null;index:idx_ledger_user_created,priority:1;uniqueIndex:ux_ledger_user_reference,priority:1"`
	Amount       int       `json:"amount"       gorm:"not null"`
	Kind         string    `json:"kind"         gorm:"type:varchar(32);not null"`
	Description  string    `json:"description"  gorm:"type:text"`
	ReferenceID  *string   `json:"reference_id,omitempty" gorm:"type:varchar(128);uniqueIndex:ux_ledger_user_reference,priority:2"`
	BalanceAfter int       `json:"balance_after" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"   gorm:"index:idx_ledger_user_created,priority:2"`
}

// TableName returns the database table name for LedgerEntry.
func (LedgerEntry) TableName() string { return "token_transactions" }

// Ledger entry kinds.
const (
	KindWelcome          = "welcome"
	KindDailyBonus       = "daily_bonus"
	KindGenerationDebit  = "generation_debit"
	KindRefund           = "refund"
	KindAdReward         = "ad_reward"
	KindKofiSubscription = "kofi_subscription"
	KindKofiDonation     = "kofi_donation"
	KindKofiPurchase     = "kofi_purchase"
)
