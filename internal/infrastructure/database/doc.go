// Package database provides SQLite connectivity for the device snapshot journal.
//
// This package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Schema migrations embedded in the binary (see the migrations package)
//   - Connection lifecycle and health checks
//
// All queries use parameterised statements, and the database file is
// created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are additive: each version ships an .up.sql and a
// .down.sql, and new columns must be nullable or carry a default.
package database
