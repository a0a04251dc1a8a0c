package database

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
)

// goose keeps its dialect, base FS and logger in package globals.
var gooseMu sync.Mutex

// Logger receives migration progress. *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// gooseLogger adapts Logger to goose's printf-style logger.
type gooseLogger struct {
	logger Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.logger.Info("migration", "detail", fmt.Sprintf(format, v...))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.logger.Error("migration failed", "detail", fmt.Sprintf(format, v...))
}

// Migrate applies every pending goose migration found at the root of fsys.
//
// Migration files follow goose naming (00001_init.sql) with
// "-- +goose Up" / "-- +goose Down" sections.
//
// Parameters:
//   - ctx: Context for cancellation
//   - fsys: Filesystem holding the .sql files (migrations.FS in production)
//   - logger: Receives goose progress; nil silences goose
//
// Returns:
//   - error: If any migration fails (earlier ones stay applied)
func (db *DB) Migrate(ctx context.Context, fsys fs.FS, logger Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if logger != nil {
		goose.SetLogger(gooseLogger{logger: logger})
	} else {
		goose.SetLogger(goose.NopLogger())
	}

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the latest applied migration version.
// Logged at startup so a deployed binary can be matched to its schema.
func (db *DB) SchemaVersion(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("setting migration dialect: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
