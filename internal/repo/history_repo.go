package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
)

// CreateHistory inserts rec, assigning an ID and UTC timestamp when unset.
// Only ciphertext columns are written; callers encrypt beforehand.
func CreateHistory(ctx context.Context, db *gorm.DB, rec *domain.HistoryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(rec).Error
}

// ListHistory returns up to limit records for userID, newest first.
func ListHistory(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.HistoryRecord, error) {
	var out []domain.HistoryRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountHistorySince returns how many generations userID recorded at or after since.
func CountHistorySince(ctx context.Context, db *gorm.DB, userID string, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.HistoryRecord{}).
		Where("user_id = ? AND created_at >= ?", userID, since.UTC()).
		Count(&n).Error
	return n, err
}
