// Package database provides SQLite connectivity for Doorkeeper Core.
//
// It opens the database with WAL mode, a busy timeout and foreign keys
// enabled, and applies the embedded goose migrations from the migrations
// package.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS, logger); err != nil {
//	    return err
//	}
package database
