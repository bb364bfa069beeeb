package resolver

import (
	"context"
	"slices"
	"strings"

	"github.com/syssam/curator"
	"github.com/syssam/curator/acl"
	"github.com/syssam/curator/dialect/sql"
	"github.com/syssam/curator/graph"
	"github.com/syssam/curator/model"
	"github.com/syssam/curator/storage"
)

// DefaultPageSize caps listings that do not ask for a page size.
const DefaultPageSize = 200

// ListInput carries the client arguments of a listing.
type ListInput struct {
	Filter  map[string]any
	Sorting map[string]any
	First   *int
	Offset  *int
}

func (in ListInput) first() int {
	if in.First != nil {
		return *in.First
	}
	return DefaultPageSize
}

func (in ListInput) offset() int {
	if in.Offset != nil {
		return *in.Offset
	}
	return 0
}

// listPlan is a fully planned listing query.
type listPlan struct {
	sel      *sql.Selector
	eager    []storage.EagerPath
	pageSize int
	offset   int
}

// planList translates requested fields and listing input into a selector:
// projection plus the window total count, filter and ownership predicates,
// ordering and paging, with eager directives for requested relations.
func (r *Resolver) planList(ctx context.Context, fields []graph.Field, in ListInput, match acl.Match, sub *curator.Subject) (*listPlan, error) {
	sel := sql.Select(r.projection(fields)...).
		From(r.table()).
		AppendSelect(sql.CountOver(storage.FullCountColumn))

	if p, err := r.wherePredicate(in.Filter, match, sub, sel); err != nil {
		return nil, err
	} else if p != nil {
		sel.Where(p)
	}

	for _, e := range r.intro.Sortable() {
		v, ok := in.Sorting[e.Field]
		if !ok {
			continue
		}
		desc, ok := v.(bool)
		if !ok {
			continue // non-boolean entries are ignored
		}
		if desc {
			sel.OrderBy(sql.Desc(e.Field))
		} else {
			sel.OrderBy(sql.Asc(e.Field))
		}
	}

	for _, ext := range r.def.Extensions {
		if le, ok := ext.(model.ListingExtension); ok {
			sel = le.Listing(sel)
		}
	}

	first, offset := in.first(), in.offset()
	sel.Limit(first).Offset(offset)

	return &listPlan{
		sel:      sel,
		eager:    r.eagerPaths(fields),
		pageSize: first,
		offset:   offset,
	}, nil
}

// projection selects the requested top-level fields that are not
// relations. The id and every owner join column always ride along; the
// latter feed the per-row owner derivation of the ACL. An empty
// selection projects every column.
func (r *Resolver) projection(fields []graph.Field) []string {
	if len(fields) == 0 {
		return []string{"*"}
	}
	columns := []string{curator.FieldID}
	for _, f := range fields {
		switch f.Name {
		case curator.FieldID, curator.FieldTasks, curator.FieldRestrictedFields:
			continue
		case curator.FieldCreated, curator.FieldUpdated:
			columns = appendColumn(columns, f.Name)
			continue
		}
		e, ok := r.intro.Element(f.Name)
		if !ok {
			continue
		}
		if e.Relational() {
			// Relations are eagerly loaded; keep their join column so
			// the rows can be tied together.
			columns = appendColumn(columns, e.JoinColumn())
			continue
		}
		columns = appendColumn(columns, e.Field)
	}
	for _, c := range r.intro.OwnerJoinFields() {
		columns = appendColumn(columns, c)
	}
	return columns
}

func appendColumn(columns []string, c string) []string {
	if slices.Contains(columns, c) {
		return columns
	}
	return append(columns, c)
}

// wherePredicate builds the filter and ownership predicates. Extensions
// run inside the where-builder in insertion order: the first per-field
// extension that handles a field short-circuits all further processing
// for it; whole-filter extensions all run.
func (r *Resolver) wherePredicate(filter map[string]any, match acl.Match, sub *curator.Subject, sel *sql.Selector) (*sql.Predicate, error) {
	var preds []*sql.Predicate
	for _, e := range r.intro.Filterable() {
		value, ok := filter[e.Field]
		if !ok {
			continue
		}
		if r.runFieldExtensions(sel, e.Field, value) {
			continue
		}
		preds = append(preds, filterPredicate(e, value))
	}
	for _, ext := range r.def.Extensions {
		if fe, ok := ext.(model.FilterExtension); ok {
			fe.FilterAll(sel, filter)
		}
	}

	scoped, err := r.scopePredicate(match, sub)
	if err != nil {
		return nil, err
	}
	if scoped != nil {
		preds = append(preds, scoped)
	}
	return sql.And(preds...), nil
}

func (r *Resolver) runFieldExtensions(sel *sql.Selector, field string, value any) bool {
	for _, ext := range r.def.Extensions {
		fe, ok := ext.(model.FieldFilterExtension)
		if !ok {
			continue
		}
		if _, handled := fe.FilterField(sel, field, value); handled {
			return true
		}
	}
	return false
}

// filterPredicate translates one declared filter field. A nil value
// matches NULL rows, a false scalar matches false or NULL (tri-state),
// arrays on listingFilterMultiple fields become IN clauses.
func filterPredicate(e model.Element, value any) *sql.Predicate {
	column := e.Field
	if e.Relational() {
		column = e.JoinColumn()
	}
	switch v := value.(type) {
	case nil:
		return sql.IsNull(column)
	case []any:
		if e.ListingFilterMultiple {
			return sql.In(column, v...)
		}
		return sql.EQ(column, v)
	case bool:
		if !v {
			return sql.FalseOrNull(column)
		}
		return sql.EQ(column, v)
	default:
		return sql.EQ(column, v)
	}
}

// scopePredicate enforces the row-level restriction scope: without the
// "all" restriction, only rows owned by the subject may be returned.
func (r *Resolver) scopePredicate(match acl.Match, sub *curator.Subject) (*sql.Predicate, error) {
	if match.AllowedRestrictions == nil || slices.Contains(match.AllowedRestrictions, acl.RestrictionAll) {
		return nil, nil
	}
	if sub == nil {
		return nil, curator.NewAuthorizationError(string(acl.ActionAccess))
	}
	owners := r.intro.OwnerJoinFields()
	if len(owners) == 0 {
		return nil, curator.NewAuthorizationError(string(acl.ActionAccess))
	}
	preds := make([]*sql.Predicate, 0, len(owners))
	for _, column := range owners {
		preds = append(preds, sql.EQ(column, sub.ID))
	}
	return sql.Or(preds...), nil
}

// eagerPaths composes relation prefetch directives for every requested
// relation field, restricted to its requested sub-fields. A relation
// requested without sub-selection follows its declared defaultEager path.
func (r *Resolver) eagerPaths(fields []graph.Field) []storage.EagerPath {
	var paths []storage.EagerPath
	for _, f := range fields {
		e, ok := r.intro.Relation(f.Name)
		if !ok {
			continue
		}
		if p, ok := r.eagerPath(e, f.Selections); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

func (r *Resolver) eagerPath(e model.Element, selections []graph.Field) (storage.EagerPath, bool) {
	target, ok := r.relationTarget(e)
	if !ok {
		return storage.EagerPath{}, false
	}
	path := storage.EagerPath{
		Field:      e.Field,
		JoinColumn: e.JoinColumn(),
		Table:      target.table(),
	}
	if len(selections) == 0 {
		if e.DefaultEager != "" {
			path.Nested = target.defaultEagerChain(e.DefaultEager)
		}
		return path, true
	}
	for _, sub := range selections {
		se, ok := target.intro.Element(sub.Name)
		if !ok {
			continue
		}
		if se.Relational() {
			// Nested relations are loaded without further projection
			// restriction.
			if nested, ok := target.nestedEagerPath(se); ok {
				path.Nested = append(path.Nested, nested)
			}
			continue
		}
		path.Columns = appendColumn(path.Columns, se.Field)
	}
	return path, true
}

func (r *Resolver) nestedEagerPath(e model.Element) (storage.EagerPath, bool) {
	target, ok := r.relationTarget(e)
	if !ok {
		return storage.EagerPath{}, false
	}
	return storage.EagerPath{
		Field:      e.Field,
		JoinColumn: e.JoinColumn(),
		Table:      target.table(),
	}, true
}

// defaultEagerChain turns a dotted defaultEager hint into a nested path
// chain, resolving each segment against the current target model.
func (r *Resolver) defaultEagerChain(hint string) []storage.EagerPath {
	segments := strings.Split(hint, ".")
	current := r
	var head []storage.EagerPath
	tail := &head
	for _, seg := range segments {
		e, ok := current.intro.Relation(seg)
		if !ok {
			break
		}
		target, ok := current.relationTarget(e)
		if !ok {
			break
		}
		p := storage.EagerPath{
			Field:      e.Field,
			JoinColumn: e.JoinColumn(),
			Table:      target.table(),
		}
		*tail = append(*tail, p)
		tail = &(*tail)[0].Nested
		current = target
	}
	return head
}
