package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// migrateMu serializes access to goose's process-global configuration
// (base FS, dialect, logger) so concurrent callers, such as parallel tests
// opening separate databases, do not race on it.
var migrateMu sync.Mutex

// slogGooseLogger adapts goose's logger interface to slog so migration
// output lands in the structured log stream.
type slogGooseLogger struct{}

// Printf forwards informational goose messages to slog.Info.
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...))
}

// Fatalf forwards goose error messages to slog.Error without exiting;
// the error goose returns propagates to the caller, which decides.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...))
}

// Migrate applies all pending schema migrations from the embedded set for
// the given driver. It is safe to call on every startup: goose records
// applied versions and no-ops when the schema is current.
func Migrate(ctx context.Context, db *sqlx.DB, driver string, logger *slog.Logger) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	var dialect, dir string
	switch driver {
	case DriverSQLite:
		dialect = "sqlite3"
		dir = "migrations/sqlite"
	case DriverPostgres:
		dialect = "postgres"
		dir = "migrations/postgres"
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(&slogGooseLogger{})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	start := time.Now()
	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	logger.Info("database schema is up to date",
		slog.Int64("version", version),
		slog.String("driver", driver),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return nil
}
