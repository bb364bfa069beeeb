package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/curator/dialect"
)

// Querier wraps the Query method, implemented by all statement builders.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// builder holds the SQL string under construction together with its
// bound arguments and the rendering dialect.
type builder struct {
	sb      strings.Builder
	dialect string
	args    []any
}

func (b *builder) writeString(s string) { b.sb.WriteString(s) }

// arg appends v to the bound arguments and writes its placeholder.
func (b *builder) arg(v any) {
	b.args = append(b.args, v)
	if b.dialect == dialect.Postgres {
		b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
		return
	}
	b.sb.WriteString("?")
}

// Predicate is a where-clause fragment. Predicates compose with And, Or
// and Not, and render lazily so one predicate tree can serve any dialect.
type Predicate struct {
	fns []func(*builder)
}

// P returns a new empty predicate.
func P() *Predicate { return &Predicate{} }

func (p *Predicate) append(f func(*builder)) *Predicate {
	p.fns = append(p.fns, f)
	return p
}

func (p *Predicate) build(b *builder) {
	for _, f := range p.fns {
		f(b)
	}
}

// EQ returns a `column = value` predicate.
func EQ(column string, v any) *Predicate {
	return P().append(func(b *builder) {
		b.writeString(column + " = ")
		b.arg(v)
	})
}

// NEQ returns a `column <> value` predicate.
func NEQ(column string, v any) *Predicate {
	return P().append(func(b *builder) {
		b.writeString(column + " <> ")
		b.arg(v)
	})
}

// In returns a `column IN (values...)` predicate. An empty value list
// renders FALSE, matching no rows.
func In(column string, vs ...any) *Predicate {
	return P().append(func(b *builder) {
		if len(vs) == 0 {
			b.writeString("FALSE")
			return
		}
		b.writeString(column + " IN (")
		for i, v := range vs {
			if i > 0 {
				b.writeString(", ")
			}
			b.arg(v)
		}
		b.writeString(")")
	})
}

// IsNull returns a `column IS NULL` predicate.
func IsNull(column string) *Predicate {
	return P().append(func(b *builder) {
		b.writeString(column + " IS NULL")
	})
}

// NotNull returns a `column IS NOT NULL` predicate.
func NotNull(column string) *Predicate {
	return P().append(func(b *builder) {
		b.writeString(column + " IS NOT NULL")
	})
}

// FalseOrNull returns a `(column = FALSE OR column IS NULL)` predicate.
// Tri-state boolean filters treat a missing value as false.
func FalseOrNull(column string) *Predicate {
	return P().append(func(b *builder) {
		b.writeString("(" + column + " = FALSE OR " + column + " IS NULL)")
	})
}

// EqualFold returns a case-insensitive `LOWER(column) = LOWER(value)` predicate.
func EqualFold(column string, v string) *Predicate {
	return P().append(func(b *builder) {
		b.writeString("LOWER(" + column + ") = LOWER(")
		b.arg(v)
		b.writeString(")")
	})
}

// And combines the given predicates with AND.
func And(ps ...*Predicate) *Predicate {
	ps = nonNil(ps)
	switch len(ps) {
	case 0:
		return nil
	case 1:
		return ps[0]
	}
	return P().append(func(b *builder) {
		b.writeString("(")
		for i, p := range ps {
			if i > 0 {
				b.writeString(" AND ")
			}
			p.build(b)
		}
		b.writeString(")")
	})
}

// Or combines the given predicates with OR.
func Or(ps ...*Predicate) *Predicate {
	ps = nonNil(ps)
	switch len(ps) {
	case 0:
		return nil
	case 1:
		return ps[0]
	}
	return P().append(func(b *builder) {
		b.writeString("(")
		for i, p := range ps {
			if i > 0 {
				b.writeString(" OR ")
			}
			p.build(b)
		}
		b.writeString(")")
	})
}

// Not negates the given predicate.
func Not(p *Predicate) *Predicate {
	return P().append(func(b *builder) {
		b.writeString("NOT (")
		p.build(b)
		b.writeString(")")
	})
}

func nonNil(ps []*Predicate) []*Predicate {
	out := ps[:0]
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Asc returns an ascending order term for the given column.
func Asc(column string) string { return column + " ASC" }

// Desc returns a descending order term for the given column.
func Desc(column string) string { return column + " DESC" }

// CountOver returns the window aggregate column that carries the unpaged
// total count alongside each row of a paged result.
func CountOver(as string) string {
	return "COUNT(*) OVER() AS " + as
}

// Selector is a builder for SELECT statements.
type Selector struct {
	dialect string
	columns []string
	table   string
	where   *Predicate
	order   []string
	limit   *int
	offset  *int
}

// Select returns a Selector for the given columns.
func Select(columns ...string) *Selector {
	return &Selector{columns: columns}
}

// SetDialect sets the rendering dialect.
func (s *Selector) SetDialect(name string) *Selector {
	s.dialect = name
	return s
}

// Dialect returns the rendering dialect.
func (s *Selector) Dialect() string { return s.dialect }

// From sets the table the statement selects from.
func (s *Selector) From(table string) *Selector {
	s.table = table
	return s
}

// Table returns the table the statement selects from.
func (s *Selector) Table() string { return s.table }

// Columns returns the selected columns.
func (s *Selector) Columns() []string { return s.columns }

// AppendSelect appends additional columns to the selection.
func (s *Selector) AppendSelect(columns ...string) *Selector {
	s.columns = append(s.columns, columns...)
	return s
}

// Where sets or ANDs the where clause of the statement.
func (s *Selector) Where(p *Predicate) *Selector {
	if p == nil {
		return s
	}
	if s.where != nil {
		s.where = And(s.where, p)
	} else {
		s.where = p
	}
	return s
}

// P returns the current where clause, if any.
func (s *Selector) P() *Predicate { return s.where }

// OrderBy appends order terms to the statement. Use Asc and Desc to
// construct the terms.
func (s *Selector) OrderBy(terms ...string) *Selector {
	s.order = append(s.order, terms...)
	return s
}

// OrderTerms returns the current order terms.
func (s *Selector) OrderTerms() []string { return s.order }

// Limit sets the LIMIT of the statement.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets the OFFSET of the statement.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// Query returns query representation of a `SELECT` statement.
func (s *Selector) Query() (string, []any) {
	b := &builder{dialect: s.dialect}
	b.writeString("SELECT ")
	if len(s.columns) == 0 {
		b.writeString("*")
	} else {
		b.writeString(strings.Join(s.columns, ", "))
	}
	b.writeString(" FROM " + s.table)
	if s.where != nil {
		b.writeString(" WHERE ")
		s.where.build(b)
	}
	if len(s.order) > 0 {
		b.writeString(" ORDER BY " + strings.Join(s.order, ", "))
	}
	if s.limit != nil {
		b.writeString(" LIMIT " + strconv.Itoa(*s.limit))
	}
	if s.offset != nil {
		b.writeString(" OFFSET " + strconv.Itoa(*s.offset))
	}
	return b.sb.String(), b.args
}

// InsertBuilder is a builder for INSERT statements.
type InsertBuilder struct {
	dialect string
	table   string
	columns []string
	values  []any
}

// Insert returns an InsertBuilder for the given table.
func Insert(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

// SetDialect sets the rendering dialect.
func (i *InsertBuilder) SetDialect(name string) *InsertBuilder {
	i.dialect = name
	return i
}

// Set adds a column with its value to the statement.
func (i *InsertBuilder) Set(column string, v any) *InsertBuilder {
	i.columns = append(i.columns, column)
	i.values = append(i.values, v)
	return i
}

// Query returns query representation of an `INSERT INTO` statement.
func (i *InsertBuilder) Query() (string, []any) {
	b := &builder{dialect: i.dialect}
	b.writeString("INSERT INTO " + i.table + " (" + strings.Join(i.columns, ", ") + ") VALUES (")
	for j, v := range i.values {
		if j > 0 {
			b.writeString(", ")
		}
		b.arg(v)
	}
	b.writeString(")")
	return b.sb.String(), b.args
}

// UpdateBuilder is a builder for UPDATE statements.
type UpdateBuilder struct {
	dialect string
	table   string
	columns []string
	values  []any
	where   *Predicate
}

// Update returns an UpdateBuilder for the given table.
func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

// SetDialect sets the rendering dialect.
func (u *UpdateBuilder) SetDialect(name string) *UpdateBuilder {
	u.dialect = name
	return u
}

// Set adds a column with its new value to the statement.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Empty reports whether the statement carries no column assignments.
func (u *UpdateBuilder) Empty() bool { return len(u.columns) == 0 }

// Where sets or ANDs the where clause of the statement.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	if p == nil {
		return u
	}
	if u.where != nil {
		u.where = And(u.where, p)
	} else {
		u.where = p
	}
	return u
}

// Query returns query representation of an `UPDATE` statement.
func (u *UpdateBuilder) Query() (string, []any) {
	b := &builder{dialect: u.dialect}
	b.writeString("UPDATE " + u.table + " SET ")
	for j, c := range u.columns {
		if j > 0 {
			b.writeString(", ")
		}
		b.writeString(c + " = ")
		b.arg(u.values[j])
	}
	if u.where != nil {
		b.writeString(" WHERE ")
		u.where.build(b)
	}
	return b.sb.String(), b.args
}

// Raw returns a raw SQL query wrapped as a Querier.
func Raw(query string, args ...any) Querier {
	return rawQuery{query: query, args: args}
}

type rawQuery struct {
	query string
	args  []any
}

func (r rawQuery) Query() (string, []any) { return r.query, r.args }

var (
	_ Querier = (*Selector)(nil)
	_ Querier = (*InsertBuilder)(nil)
	_ Querier = (*UpdateBuilder)(nil)
)

// String implements fmt.Stringer for debugging.
func (s *Selector) String() string {
	q, args := s.Query()
	return fmt.Sprintf("%s %v", q, args)
}
