package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// gooseUp is swapped in tests so migrations can run against sqlmock.
var gooseUp = func(ctx context.Context, database *sql.DB, dir string) error {
	return goose.UpContext(ctx, database, dir)
}

func RunMigrations(ctx context.Context, database *sql.DB) error {
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}

	if err := gooseUp(ctx, database, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
