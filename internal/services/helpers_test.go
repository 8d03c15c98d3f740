package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/go-testgen-gateway/internal/cache"
	"github.com/tbourn/go-testgen-gateway/internal/envelope"
	"github.com/tbourn/go-testgen-gateway/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close(db) })
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func newTestEnvelope(t *testing.T) *envelope.Envelope {
	t.Helper()
	key, err := envelope.GenerateKey()
	require.NoError(t, err)
	env, err := envelope.New(key)
	require.NoError(t, err)
	return env
}

func newTestCache() *cache.Engine {
	return cache.NewEngine(cache.NewMemoryStore(256))
}

func newTestLedger(t *testing.T) (*LedgerService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return &LedgerService{Wallet: repo.NewGormWallet(db), WelcomeTokens: 100, DailyBonusTokens: 20}, db
}
