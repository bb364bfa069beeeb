package graph

import (
	"context"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
)

// Field is one requested field with its sub-selection.
type Field struct {
	Name       string
	Selections []Field
}

// Fields builds a flat field list by name, for callers outside a GraphQL
// request (tests, internal use).
func Fields(names ...string) []Field {
	out := make([]Field, 0, len(names))
	for _, n := range names {
		out = append(out, Field{Name: n})
	}
	return out
}

// Names returns the top-level field names.
func Names(fields []Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

// Find returns the named top-level field.
func Find(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

type fieldsCtxKey struct{}

// WithFields returns a context carrying an explicit field selection.
// Callers outside a GraphQL request use it to scope projection the way a
// query's selection set would.
func WithFields(ctx context.Context, fields []Field) context.Context {
	return context.WithValue(ctx, fieldsCtxKey{}, fields)
}

// RequestedFields returns the field selection of the currently resolving
// GraphQL field, sub-selections included. An explicit selection attached
// with WithFields wins; without one or a gqlgen operation it returns nil.
func RequestedFields(ctx context.Context) []Field {
	if fields, ok := ctx.Value(fieldsCtxKey{}).([]Field); ok {
		return fields
	}
	if !graphql.HasOperationContext(ctx) {
		return nil
	}
	fc := graphql.GetFieldContext(ctx)
	if fc == nil {
		return nil
	}
	oc := graphql.GetOperationContext(ctx)
	return collect(oc, fc.Field.Selections)
}

func collect(oc *graphql.OperationContext, selections ast.SelectionSet) []Field {
	if len(selections) == 0 {
		return nil
	}
	collected := graphql.CollectFields(oc, selections, nil)
	out := make([]Field, 0, len(collected))
	for _, cf := range collected {
		out = append(out, Field{
			Name:       cf.Name,
			Selections: collect(oc, cf.Selections),
		})
	}
	return out
}
