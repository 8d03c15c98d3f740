package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&HistoryRecord{}, &Wallet{}, &LedgerEntry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(HistoryRecord{}).TableName(): "generation_history",
		(Wallet{}).TableName():        "user_tokens",
		(LedgerEntry{}).TableName():   "token_transactions",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestLedgerReference_Unique(t *testing.T) {
	db := newDomainDB(t)
	ref := "kofi_txn_1"
	first := LedgerEntry{ID: "e1", UserID: "u1", Amount: 10, Kind: KindKofiDonation, ReferenceID: &ref, BalanceAfter: 10, CreatedAt: time.Now()}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	dup := LedgerEntry{ID: "e2", UserID: "u1", Amount: 10, Kind: KindKofiDonation, ReferenceID: &ref, BalanceAfter: 20, CreatedAt: time.Now()}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation on reference_id")
	}

	// NULL references never collide.
	a := LedgerEntry{ID: "e3", UserID: "u1", Amount: -5, Kind: KindGenerationDebit, BalanceAfter: 5, CreatedAt: time.Now()}
	b := LedgerEntry{ID: "e4", UserID: "u1", Amount: -5, Kind: KindGenerationDebit, BalanceAfter: 0, CreatedAt: time.Now()}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("insert b: %v", err)
	}
}

func TestHistoryRecord_CiphertextNotSerialized(t *testing.T) {
	rec := HistoryRecord{ID: "h1", EncryptedInput: "gAAAA-in", EncryptedOutput: "gAAAA-out"}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "gAAAA") {
		t.Fatalf("ciphertext leaked into JSON: %s", b)
	}
	db := newDomainDB(t)
	rec.UserID, rec.Language, rec.Model = "u1", "python", "m"
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var got HistoryRecord
	if err := db.First(&got, "id = ?", "h1").Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.EncryptedOutput != "gAAAA-out" || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected row: %+v", got)
	}
}
