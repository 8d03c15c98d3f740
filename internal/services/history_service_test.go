package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
)

func TestHistory_RoundTripNewestFirst(t *testing.T) {
	db := newTestDB(t)
	svc := &HistoryService{DB: db, Cipher: newTestEnvelope(t), Cache: newTestCache()}
	ctx := context.Background()

	first, err := svc.Record(ctx, "u1", "python", "m", "def a(): pass", "def test_a(): pass")
	require.NoError(t, err)
	assert.Equal(t, "def a(): pass", first.InputCode)
	time.Sleep(5 * time.Millisecond)
	_, err = svc.Record(ctx, "u1", "python", "m", "def b(): pass", "def test_b(): pass")
	require.NoError(t, err)

	items, err := svc.List(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "def b(): pass", items[0].InputCode)
	assert.Equal(t, "def test_b(): pass", items[0].GeneratedCode)
	_, err = time.Parse(time.RFC3339, items[0].CreatedAt)
	assert.NoError(t, err)

	// Only ciphertext reaches the table.
	var rec domain.HistoryRecord
	require.NoError(t, db.Where("id = ?", first.ID).Take(&rec).Error)
	assert.NotContains(t, rec.EncryptedInput, "def a")
	assert.NotContains(t, rec.EncryptedOutput, "test_a")
}

func TestHistory_InsertInvalidatesCachedPage(t *testing.T) {
	db := newTestDB(t)
	svc := &HistoryService{DB: db, Cipher: newTestEnvelope(t), Cache: newTestCache()}
	ctx := context.Background()

	_, err := svc.Record(ctx, "u1", "python", "m", "x", "y")
	require.NoError(t, err)
	items, err := svc.List(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = svc.Record(ctx, "u1", "python", "m", "x2", "y2")
	require.NoError(t, err)
	items, err = svc.List(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestHistory_SlowReaderCannotRepopulateStalePage(t *testing.T) {
	db := newTestDB(t)
	svc := &HistoryService{DB: db, Cipher: newTestEnvelope(t), Cache: newTestCache()}
	ctx := context.Background()

	_, err := svc.Record(ctx, "u1", "python", "m", "x", "y")
	require.NoError(t, err)

	// A reader resolves its key and loads one row, then stalls.
	staleKey, ttl, ok := svc.pageKey(ctx, "u1")
	require.True(t, ok)
	staleRows, err := svc.page(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, staleRows, 1)
	require.NoError(t, svc.Cache.Delete(ctx, staleKey))

	// A write lands and invalidates before the reader's cache write.
	_, err = svc.Record(ctx, "u1", "python", "m", "x2", "y2")
	require.NoError(t, err)
	b, err := json.Marshal(staleRows)
	require.NoError(t, err)
	require.NoError(t, svc.Cache.SetEx(ctx, staleKey, ttl, string(b)))

	items, err := svc.List(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestHistory_RotatedKeySkipsRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	writer := &HistoryService{DB: db, Cipher: newTestEnvelope(t)}
	_, err := writer.Record(ctx, "u1", "python", "m", "x", "y")
	require.NoError(t, err)

	reader := &HistoryService{DB: db, Cipher: newTestEnvelope(t)}
	items, err := reader.List(ctx, "u1", 10)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestHistory_LimitClamped(t *testing.T) {
	db := newTestDB(t)
	svc := &HistoryService{DB: db, Cipher: newTestEnvelope(t)}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Record(ctx, "u1", "python", "m", "x", "y")
		require.NoError(t, err)
	}
	items, err := svc.List(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = svc.List(ctx, "u1", 1000)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	n, err := svc.CountSince(ctx, "u1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
