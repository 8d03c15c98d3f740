package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
)

func newBareDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("history_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func seedHistory(t *testing.T, userID string, at time.Time) *domain.HistoryRecord {
	t.Helper()
	return &domain.HistoryRecord{UserID: userID, Language: "python", Model: "m", EncryptedInput: "in", EncryptedOutput: "out", CreatedAt: at}
}

func TestCreateHistory_AssignsIDAndTimestamp(t *testing.T) {
	db := newWalletDB(t)
	rec := &domain.HistoryRecord{UserID: "u1", Language: "python", Model: "m", EncryptedInput: "a", EncryptedOutput: "b"}
	if err := CreateHistory(context.Background(), db, rec); err != nil {
		t.Fatalf("CreateHistory: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", rec)
	}
}

func TestCreateHistory_Error_NoTable(t *testing.T) {
	db := newBareDB(t)
	if err := CreateHistory(context.Background(), db, seedHistory(t, "u1", time.Now())); err == nil {
		t.Fatalf("expected error without table")
	}
}

func TestListHistory_NewestFirstLimitedAndScoped(t *testing.T) {
	db := newWalletDB(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := CreateHistory(ctx, db, seedHistory(t, "u1", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := CreateHistory(ctx, db, seedHistory(t, "u2", base.Add(10*time.Hour))); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := ListHistory(ctx, db, "u1", 3)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Fatalf("rows not newest first: %v then %v", got[i-1].CreatedAt, got[i].CreatedAt)
		}
	}
	if !got[0].CreatedAt.Equal(base.Add(4 * time.Hour)) {
		t.Fatalf("expected newest row first, got %v", got[0].CreatedAt)
	}
	for _, r := range got {
		if r.UserID != "u1" {
			t.Fatalf("foreign row leaked: %+v", r)
		}
	}
}

func TestCountHistorySince(t *testing.T) {
	db := newWalletDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	for _, ago := range []time.Duration{time.Hour, 3 * 24 * time.Hour, 8 * 24 * time.Hour} {
		if err := CreateHistory(ctx, db, seedHistory(t, "u1", now.Add(-ago))); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	n, err := CountHistorySince(ctx, db, "u1", now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("CountHistorySince: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows within a week, got %d", n)
	}
}
