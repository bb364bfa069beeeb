package model

import "strings"

// Introspection is the set of immutable filtered element views computed
// once per resolver construction. Elements without a field name are
// ignored entirely.
type Introspection struct {
	def *Definition

	relations  []Element // relation and owner elements, traversable
	owners     []Element
	states     []Element
	filterable []Element
	sortable   []Element
	sequences  []Element
	datetimes  []Element

	readFields  []string
	inputFields []string

	byField map[string]Element
}

// Introspect computes the filtered views over the definition's elements.
func Introspect(def *Definition) *Introspection {
	in := &Introspection{def: def, byField: make(map[string]Element)}
	for _, e := range def.Elements {
		if e.Field == "" {
			continue
		}
		if _, ok := in.byField[e.Field]; ok {
			continue // first declaration wins
		}
		in.byField[e.Field] = e
		in.readFields = append(in.readFields, e.Field)
		if e.Writable() {
			in.inputFields = append(in.inputFields, e.Field)
		}
		switch e.Kind() {
		case KindOwner:
			in.owners = append(in.owners, e)
			in.relations = append(in.relations, e)
		case KindRelation:
			in.relations = append(in.relations, e)
		case KindState:
			in.states = append(in.states, e)
		}
		if e.ListingFilter {
			in.filterable = append(in.filterable, e)
		}
		if e.ListingSortable {
			in.sortable = append(in.sortable, e)
		}
		if e.IDSequence != "" {
			in.sequences = append(in.sequences, e)
		}
		if e.Datetime {
			in.datetimes = append(in.datetimes, e)
		}
	}
	return in
}

// Definition returns the definition the introspection was computed from.
func (in *Introspection) Definition() *Definition { return in.def }

// Relations returns the traversable elements (relations and owner links).
func (in *Introspection) Relations() []Element { return in.relations }

// Owners returns the owner link elements.
func (in *Introspection) Owners() []Element { return in.owners }

// States returns the state field elements.
func (in *Introspection) States() []Element { return in.states }

// Filterable returns the declared listing-filter elements.
func (in *Introspection) Filterable() []Element { return in.filterable }

// Sortable returns the declared listing-sortable elements.
func (in *Introspection) Sortable() []Element { return in.sortable }

// Sequences returns the id-sequence elements.
func (in *Introspection) Sequences() []Element { return in.sequences }

// Datetimes returns the datetime elements.
func (in *Introspection) Datetimes() []Element { return in.datetimes }

// ReadFields returns every declared field name, the allowed-read set.
func (in *Introspection) ReadFields() []string { return in.readFields }

// InputFields returns the allowed-input field names.
func (in *Introspection) InputFields() []string { return in.inputFields }

// Element returns the element declared under the given field.
func (in *Introspection) Element(field string) (Element, bool) {
	e, ok := in.byField[field]
	return e, ok
}

// Relation returns the traversable element declared under the given field.
func (in *Introspection) Relation(field string) (Element, bool) {
	e, ok := in.byField[field]
	if !ok || !e.Relational() {
		return Element{}, false
	}
	return e, true
}

// IsState reports whether the given field is a declared state field.
func (in *Introspection) IsState(field string) bool {
	e, ok := in.byField[field]
	return ok && e.Kind() == KindState
}

// IsDatetime reports whether the given field is a declared datetime field.
func (in *Introspection) IsDatetime(field string) bool {
	e, ok := in.byField[field]
	return ok && e.Datetime
}

// Sequence returns the id-sequence element declared under the given field.
func (in *Introspection) Sequence(field string) (Element, bool) {
	e, ok := in.byField[field]
	if !ok || e.IDSequence == "" {
		return Element{}, false
	}
	return e, true
}

// OwnerJoinFields returns the join columns of every owner link.
func (in *Introspection) OwnerJoinFields() []string {
	out := make([]string, 0, len(in.owners))
	for _, e := range in.owners {
		out = append(out, e.joinColumn())
	}
	return out
}

// joinColumn returns the column carrying the related id, falling back to
// the element field itself when no joinField is declared.
func (e Element) joinColumn() string {
	if e.JoinField != "" {
		return e.JoinField
	}
	return e.Field
}

// JoinColumn returns the column carrying the related id for a
// traversable element.
func (e Element) JoinColumn() string { return e.joinColumn() }

// Default returns the declared default value for the element, resolving
// defaultEnum/defaultEnumKey in preference to defaultValue.
func (in *Introspection) Default(e Element) (any, bool) {
	if e.DefaultEnum != "" && e.DefaultEnumKey != "" {
		if v, ok := in.def.ResolveEnum(e.DefaultEnum, e.DefaultEnumKey); ok {
			return v, true
		}
		return nil, false
	}
	if e.DefaultValue != nil {
		return e.DefaultValue, true
	}
	return nil, false
}

// ResolveEnumRef resolves a combined "Enum.Key" reference.
func (in *Introspection) ResolveEnumRef(ref string) (any, bool) {
	enum, key, ok := strings.Cut(ref, ".")
	if !ok {
		return nil, false
	}
	return in.def.ResolveEnum(enum, key)
}
