// Package sql provides SQL query building primitives and database dialect
// abstraction for the curator storage layer.
//
// # Builder Types
//
// The package provides specialized builders for the statements the storage
// layer issues:
//
//   - Selector: SELECT query builder with predicates, ordering and pagination
//   - InsertBuilder: INSERT statement builder
//   - UpdateBuilder: UPDATE statement builder with SET and WHERE clauses
//
// # Dialect Support
//
// SQL generation adapts placeholder rendering to the dialect:
//
//	import "github.com/syssam/curator/dialect"
//
//	sql.Select("id", "title").
//	    SetDialect(dialect.Postgres).
//	    From("manuscripts").
//	    Where(sql.EQ("state", "submitted"))
//
// # Predicates
//
// Predicates compose with And, Or and Not and render lazily, so one
// predicate tree can serve any dialect:
//
//	sql.And(sql.EQ("state", "draft"), sql.Or(sql.IsNull("editor_id"), sql.EQ("editor_id", id)))
//
// # Execution
//
// Driver wraps database/sql with the dialect.Driver interface. ScanMaps
// and ScanOneMap read result rows into generic column maps, the shape the
// storage layer consumes.
package sql
