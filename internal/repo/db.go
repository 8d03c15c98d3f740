// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and Postgres, plus schema migrations.
package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
}

// sqlitePragmas tune the single-file store for concurrent readers with one
// writer at a time (history inserts, ledger transactions).
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// OpenSQLite opens (or creates) the database file at path. The parent
// directory must exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("sqlite directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, p := range sqlitePragmas {
		if err := db.Exec(p).Error; err != nil {
			_ = Close(db)
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// OpenPostgres opens a Postgres pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Open selects Postgres when databaseURL is set and SQLite at sqlitePath
// otherwise, then installs the tracing plugin.
func Open(ctx context.Context, databaseURL, sqlitePath string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	if databaseURL != "" {
		db, err = OpenPostgres(ctx, databaseURL)
	} else {
		db, err = OpenSQLite(sqlitePath)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("install tracing plugin: %w", err)
	}
	return db, nil
}

// IsPostgres reports whether db talks to Postgres.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// AutoMigrate creates the history, wallet and ledger tables. Postgres
// deployments use RunMigrations instead so the stored procedures exist.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.HistoryRecord{},
		&domain.Wallet{},
		&domain.LedgerEntry{},
	)
}

// Ping checks connectivity.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
