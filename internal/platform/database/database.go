// Package database opens the SQL backends (SQLite via modernc, PostgreSQL
// via pgx) behind a bun.DB and applies the embedded migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"relay/internal/platform/config"
	"relay/pkg/platform/sentinel"
)

//go:embed migrations
var embeddedMigrations embed.FS

// Open connects to the configured database, runs pending migrations, and
// returns the bun handle. The memory driver has no database and is rejected.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*bun.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driverName, err := driverFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if cfg.Driver == config.DriverSQLite {
		dsn = withSQLitePragmas(dsn)
	}

	start := time.Now()
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if cfg.Driver == config.DriverSQLite && isMemoryDSN(cfg.DSN) {
		// every connection to ":memory:" would see its own empty database
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: ping database: %v", sentinel.ErrUnavailable, err)
	}

	db := createBunDB(sqlDB, cfg.Driver)
	logger.InfoContext(ctx, "database opened",
		"driver", cfg.Driver,
		"max_open_conns", maxOpen,
		"duration", time.Since(start),
	)

	if err := Migrate(ctx, db, cfg.Driver, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func driverFor(driver string) (string, error) {
	switch driver {
	case config.DriverSQLite:
		return "sqlite", nil
	case config.DriverPostgres:
		// pgx stdlib registers driver name "pgx"
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// withSQLitePragmas turns on foreign keys for every pooled connection.
func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// createBunDB wraps sqlDB with the dialect matching driver.
func createBunDB(sqlDB *sql.DB, driver string) *bun.DB {
	if driver == config.DriverPostgres {
		return bun.NewDB(sqlDB, pgdialect.New())
	}
	return bun.NewDB(sqlDB, sqlitedialect.New())
}

// Migrate applies every embedded migrations/<driver>/*.up.sql that is not yet
// recorded in schema_migrations, each in its own transaction.
func Migrate(ctx context.Context, db *bun.DB, driver string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	dir := path.Join("migrations", driver)
	entries, err := fs.ReadDir(embeddedMigrations, dir)
	if err != nil {
		return fmt.Errorf("read embedded migrations (%s): %w", dir, err)
	}
	var ups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMP NOT NULL)`,
	); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := 0
	for _, name := range ups {
		version := strings.TrimSuffix(name, ".up.sql")
		exists, err := db.NewSelect().
			Table("schema_migrations").
			ColumnExpr("1").
			Where("version = ?", version).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		data, err := embeddedMigrations.ReadFile(path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, stmt := range splitStatements(string(data)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				version, time.Now().UTC(),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		applied++
	}
	logger.InfoContext(ctx, "migrations complete", "driver", driver, "applied", applied, "known", len(ups))
	return nil
}

// splitStatements splits a migration file on ";" at line ends. Migrations
// contain no procedural bodies.
func splitStatements(src string) []string {
	var out []string
	for _, part := range strings.Split(src, ";\n") {
		stmt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), ";"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Ping reports whether db answers. Used by the health endpoint.
func Ping(ctx context.Context, db *bun.DB) error {
	if db == nil {
		return errors.New("database not configured")
	}
	return db.PingContext(ctx)
}

// IsUniqueViolation reports whether err is a unique/primary key violation
// from either backend.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505") ||
		strings.Contains(msg, "constraint failed: primary key")
}

// IsForeignKeyViolation reports whether err is a foreign key violation from
// either backend.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key constraint") ||
		strings.Contains(msg, "sqlstate 23503")
}
