// Package dialect provides the database driver abstraction the storage
// layer builds on.
//
// The Driver interface wraps Exec, Query and transaction handling behind a
// dialect name so the query builders in dialect/sql can render
// dialect-appropriate SQL. The curator storage layer targets Postgres;
// the abstraction keeps the builders testable against sqlmock and leaves
// room for other backends.
//
//	db, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
// Debug wraps any Driver with slog-based statement logging:
//
//	drv := dialect.Debug(db, logger)
package dialect
