package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	mysqlmigrate "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/iliyamo/phillboard/internal/logger"
)

// Migration files are one statement each, so the DSN needs no
// multiStatements flag.  edit_history carries no foreign key to
// phillboards so history survives a hard delete.
//
//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsTable = "schema_migrations"

// Source returns the embedded migrations as a golang-migrate source.
func Source() (source.Driver, error) {
	return iofs.New(migrationFiles, "migrations")
}

// Migrate applies every pending migration.  It runs on a dedicated
// connection, so closing the migrator leaves the pool open.
func Migrate(ctx context.Context, db *sql.DB) error {
	src, err := Source()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("migration connection: %w", err)
	}
	driver, err := mysqlmigrate.WithConnection(ctx, conn, &mysqlmigrate.Config{MigrationsTable: migrationsTable})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("migrator: %w", err)
	}
	m.Log = migrateLog{}
	defer m.Close()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("schema up to date")
	case err != nil:
		return fmt.Errorf("apply migrations: %w", err)
	default:
		version, _, _ := m.Version()
		logger.Info("schema migrated", zap.Uint("version", version))
	}
	return nil
}

// migrateLog routes golang-migrate's progress lines to zap at debug.
type migrateLog struct{}

func (migrateLog) Printf(format string, v ...interface{}) {
	logger.Debug(fmt.Sprintf(format, v...), zap.String("component", "migrate"))
}

func (migrateLog) Verbose() bool { return false }
