package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-testgen-gateway/internal/config"
	"github.com/tbourn/go-testgen-gateway/internal/repo"
	"github.com/tbourn/go-testgen-gateway/internal/sysutil"
)

var errMissingDatabaseURL = errors.New("DATABASE_URL is required for migrate")

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema and wallet procedures",
	Long:  "migrate applies the embedded Postgres migrations. SQLite deployments do not need it; the gateway creates its tables on start.",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errMissingDatabaseURL
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, "testgen-migrate")

	db, err := repo.OpenPostgres(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer repo.Close(db)

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := repo.RunMigrations(sqlDB); err != nil {
		return err
	}

	names, err := repo.MigrationNames()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, n := range names {
		if strings.HasSuffix(n, ".up.sql") {
			fmt.Fprintln(out, "applied", n)
		}
	}
	return nil
}
