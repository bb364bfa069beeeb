// Package storage executes the planned queries of the instance resolver
// against a SQL database: single fetches with relation prefetching, paged
// listings carrying a window total count, inserts, updates and
// identifier-sequence allocation.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/lib/pq"

	"github.com/syssam/curator"
	"github.com/syssam/curator/dialect"
	"github.com/syssam/curator/dialect/sql"
)

// FullCountColumn is the synthetic window-aggregate column carrying the
// unpaged total count on every row of a paged listing.
const FullCountColumn = "internal_full_count"

// EagerPath instructs the store to prefetch a related entity and attach
// it under Field on each parent row.
type EagerPath struct {
	// Field is the attachment key on the parent entity.
	Field string
	// JoinColumn is the parent column holding the related entity id.
	JoinColumn string
	// Table is the related entity table.
	Table string
	// Columns restricts the related projection; nil selects everything.
	Columns []string
	// Nested prefetches relations of the related entities.
	Nested []EagerPath
}

// Store runs resolver queries over a dialect driver.
type Store struct {
	drv    dialect.Driver
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a Store over the given driver.
func New(drv dialect.Driver, opts ...Option) *Store {
	s := &Store{drv: drv, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dialect returns the driver dialect, used by planners to render SQL.
func (s *Store) Dialect() string {
	if d, ok := s.drv.(interface{ Dialect() string }); ok {
		return d.Dialect()
	}
	return dialect.Postgres
}

// Get fetches one entity by id. Columns restricts the projection (id is
// always included); eager paths are prefetched. Returns a
// curator.NotFoundError when no row matches.
func (s *Store) Get(ctx context.Context, table, id string, columns []string, eager []EagerPath) (curator.Entity, error) {
	if len(columns) > 0 {
		columns = withColumns(columns, requiredColumns(eager)...)
	}
	sel := sql.Select(columns...).
		SetDialect(s.Dialect()).
		From(table).
		Where(sql.EQ(curator.FieldID, id)).
		Limit(1)
	rows, err := s.query(ctx, sel)
	if err != nil {
		return nil, err
	}
	row, err := sql.ScanOneMap(rows)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, curator.NewNotFoundErrorWithID(table, id)
	}
	if err != nil {
		return nil, mapError(err)
	}
	entity := curator.Entity(row)
	if err := s.loadEager(ctx, []curator.Entity{entity}, eager); err != nil {
		return nil, err
	}
	return entity, nil
}

// List executes a planned listing selector and returns the page together
// with the unpaged total count taken from the window aggregate (0 on an
// empty page). Eager paths are prefetched for every returned row.
func (s *Store) List(ctx context.Context, sel *sql.Selector, eager []EagerPath) ([]curator.Entity, int, error) {
	sel.SetDialect(s.Dialect())
	rows, err := s.query(ctx, sel)
	if err != nil {
		return nil, 0, err
	}
	maps, err := sql.ScanMaps(rows)
	if err != nil {
		return nil, 0, mapError(err)
	}
	total := 0
	entities := make([]curator.Entity, 0, len(maps))
	for i, m := range maps {
		if i == 0 {
			total = asCount(m[FullCountColumn])
		}
		delete(m, FullCountColumn)
		entities = append(entities, curator.Entity(m))
	}
	if err := s.loadEager(ctx, entities, eager); err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}

// Insert persists a new entity row.
func (s *Store) Insert(ctx context.Context, table string, values map[string]any) error {
	ins := sql.Insert(table).SetDialect(s.Dialect())
	for _, col := range sortedKeys(values) {
		ins.Set(col, storeValue(values[col]))
	}
	query, args := ins.Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return mapError(err)
	}
	return nil
}

// Update applies the given column changes to one entity row.
func (s *Store) Update(ctx context.Context, table, id string, changes map[string]any) error {
	if len(changes) == 0 {
		return nil
	}
	upd := sql.Update(table).SetDialect(s.Dialect())
	for _, col := range sortedKeys(changes) {
		upd.Set(col, storeValue(changes[col]))
	}
	upd.Where(sql.EQ(curator.FieldID, id))
	query, args := upd.Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, q sql.Querier) (*sql.Rows, error) {
	query, args := q.Query()
	var rows sql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, mapError(err)
	}
	return &rows, nil
}

// loadEager prefetches each path for the given parents with one query per
// path level, attaching related entities under the path field.
func (s *Store) loadEager(ctx context.Context, parents []curator.Entity, paths []EagerPath) error {
	for _, p := range paths {
		ids := relatedIDs(parents, p.JoinColumn)
		if len(ids) == 0 {
			continue
		}
		columns := p.Columns
		if len(columns) > 0 {
			columns = withColumns(columns, requiredColumns(p.Nested)...)
		}
		sel := sql.Select(columns...).
			SetDialect(s.Dialect()).
			From(p.Table).
			Where(sql.In(curator.FieldID, ids...))
		rows, err := s.query(ctx, sel)
		if err != nil {
			return err
		}
		maps, err := sql.ScanMaps(rows)
		if err != nil {
			return mapError(err)
		}
		byID := make(map[string]curator.Entity, len(maps))
		related := make([]curator.Entity, 0, len(maps))
		for _, m := range maps {
			e := curator.Entity(m)
			byID[e.ID()] = e
			related = append(related, e)
		}
		if err := s.loadEager(ctx, related, p.Nested); err != nil {
			return err
		}
		for _, parent := range parents {
			if id, ok := parent[p.JoinColumn].(string); ok {
				if rel, ok := byID[id]; ok {
					parent[p.Field] = rel
				}
			}
		}
	}
	return nil
}

func relatedIDs(parents []curator.Entity, joinColumn string) []any {
	var ids []any
	seen := make(map[string]bool)
	for _, p := range parents {
		if id, ok := p[joinColumn].(string); ok && id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// requiredColumns lists the columns a restricted projection must carry:
// the id and the join column of every eager path.
func requiredColumns(paths []EagerPath) []string {
	out := []string{curator.FieldID}
	for _, p := range paths {
		out = append(out, p.JoinColumn)
	}
	return out
}

func withColumns(columns []string, extra ...string) []string {
	out := slices.Clone(columns)
	for _, c := range extra {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// storeValue normalizes values at the SQL boundary: timestamps travel as
// UTC, nested entities as their id.
func storeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case curator.Entity:
		return t.ID()
	default:
		return v
	}
}

func asCount(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case string:
		var i int
		fmt.Sscanf(n, "%d", &i)
		return i
	default:
		return 0
	}
}

// mapError surfaces database constraint names alongside driver errors.
func mapError(err error) error {
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return fmt.Errorf("storage: %s: %w", pqe.Code.Name(), err)
	}
	return err
}
