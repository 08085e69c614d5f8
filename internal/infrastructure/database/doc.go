// Package database provides the SQLite connection used by the catalog,
// event log and panel credential stores.
//
// It configures WAL mode, busy timeouts and foreign keys, and applies the
// embedded schema migrations (see the top-level migrations package):
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
//	    return err
//	}
//
// Tests open database.MemoryPath for an isolated in-memory database.
package database
