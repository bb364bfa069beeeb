// Package model holds the declarative model definitions the instance
// resolver is driven by, together with the introspector that computes the
// typed element views used throughout query planning and authorization.
package model

import (
	"github.com/go-openapi/inflect"

	"github.com/syssam/curator/acl"
	"github.com/syssam/curator/dialect/sql"
	"github.com/syssam/curator/validation"
)

// Kind classifies a declared element. Each element has exactly one kind;
// owner takes precedence over relation, relation over state, and anything
// else is a plain scalar.
type Kind int

const (
	KindScalar Kind = iota
	KindRelation
	KindOwner
	KindState
)

// Element is a declarative field descriptor.
type Element struct {
	Field string `yaml:"field"`

	// Type is the target type name for relation and owner elements.
	Type string `yaml:"type,omitempty"`

	// Owner marks the element as an owner link; JoinField stores the
	// subject id considered owner of the entity.
	Owner bool `yaml:"owner,omitempty"`

	// State marks the element as a workflow state field.
	State bool `yaml:"state,omitempty"`

	// IDSequence names the database sequence an identifier field is
	// drawn from. Non-empty marks the element as an id-sequence field.
	IDSequence string `yaml:"idSequence,omitempty"`

	// Datetime marks the element as a wall-clock timestamp field.
	Datetime bool `yaml:"datetime,omitempty"`

	// Input controls whether the field accepts client writes.
	// Unset defaults to true.
	Input *bool `yaml:"input,omitempty"`

	ListingFilter         bool `yaml:"listingFilter,omitempty"`
	ListingFilterMultiple bool `yaml:"listingFilterMultiple,omitempty"`
	ListingSortable       bool `yaml:"listingSortable,omitempty"`

	DefaultValue   any    `yaml:"defaultValue,omitempty"`
	DefaultEnum    string `yaml:"defaultEnum,omitempty"`
	DefaultEnumKey string `yaml:"defaultEnumKey,omitempty"`

	// JoinField is the column holding the related entity id for owner
	// and relation elements.
	JoinField string `yaml:"joinField,omitempty"`

	// DefaultEager is a dotted relation path appended when the element
	// is eagerly loaded without an explicit sub-selection.
	DefaultEager string `yaml:"defaultEager,omitempty"`
}

// Kind returns the element classification.
func (e Element) Kind() Kind {
	switch {
	case e.Owner:
		return KindOwner
	case e.Type != "":
		return KindRelation
	case e.State:
		return KindState
	default:
		return KindScalar
	}
}

// Relational reports whether the element can be traversed to another
// entity, i.e. it is a relation or an owner link.
func (e Element) Relational() bool {
	k := e.Kind()
	return k == KindRelation || k == KindOwner
}

// Writable reports whether the element accepts client input.
func (e Element) Writable() bool {
	return e.Field != "" && (e.Input == nil || *e.Input)
}

// ResultComplete is the only outcome result the task completion engine
// accepts; anything else is a model misconfiguration.
const ResultComplete = "Complete"

// StateDirective forces a state-field value when an outcome completes.
type StateDirective struct {
	// Type is either "enum" (Value is an "Enum.Key" reference) or
	// "simple" (Value is taken literally).
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

// DateAssignment stamps a declared datetime field on outcome completion.
type DateAssignment struct {
	Field string `yaml:"field"`
}

// Outcome is a named terminal branch of a form completion.
type Outcome struct {
	Type                       string                    `yaml:"type"`
	Result                     string                    `yaml:"result"`
	RequiresValidatedSubmitter bool                      `yaml:"requiresValidatedSubmitter,omitempty"`
	SkipValidations            bool                      `yaml:"skipValidations,omitempty"`
	State                      map[string]StateDirective `yaml:"state,omitempty"`
	SequenceAssignment         []string                  `yaml:"sequenceAssignment,omitempty"`
	DateAssignments            []DateAssignment          `yaml:"dateAssignments,omitempty"`
	Validation                 *validation.Set           `yaml:"validation,omitempty"`
}

// Form groups the outcomes reachable from one workflow form.
type Form struct {
	Form     string    `yaml:"form"`
	Outcomes []Outcome `yaml:"outcomes"`
}

// Outcome returns the named outcome of the form.
func (f *Form) Outcome(name string) (*Outcome, bool) {
	for i := range f.Outcomes {
		if f.Outcomes[i].Type == name {
			return &f.Outcomes[i], true
		}
	}
	return nil, false
}

// Enum is a named value set referenced by state directives and defaults.
type Enum struct {
	Values map[string]any `yaml:"values"`
}

// Extension hooks into listing-query construction. An extension value
// implements one or more of FieldFilterExtension, FilterExtension and
// ListingExtension; unrecognized values are ignored.
type Extension any

// FieldFilterExtension handles a single filter field. Returning true
// short-circuits all further processing for that field, including the
// default predicate translation.
type FieldFilterExtension interface {
	FilterField(s *sql.Selector, field string, value any) (*sql.Selector, bool)
}

// FilterExtension sees the whole filter input and may augment the
// selector. All filter extensions run, in insertion order.
type FilterExtension interface {
	FilterAll(s *sql.Selector, filter map[string]any) *sql.Selector
}

// ListingExtension runs after planning and may replace the listing
// query wholesale.
type ListingExtension interface {
	Listing(s *sql.Selector) *sql.Selector
}

// Definition is the immutable declarative model a resolver is built from.
type Definition struct {
	Name       string          `yaml:"name"`
	Table      string          `yaml:"table,omitempty"`
	Input      bool            `yaml:"input,omitempty"`
	Elements   []Element       `yaml:"elements"`
	ACL        *acl.Policy     `yaml:"acl,omitempty"`
	ProcessKey string          `yaml:"processKey,omitempty"`
	Forms      []Form          `yaml:"forms,omitempty"`
	Enums      map[string]Enum `yaml:"enums,omitempty"`

	// Extensions are registered in code, not loaded from YAML.
	Extensions []Extension `yaml:"-"`
}

// Form returns the named form of the definition.
func (d *Definition) Form(name string) (*Form, bool) {
	for i := range d.Forms {
		if d.Forms[i].Form == name {
			return &d.Forms[i], true
		}
	}
	return nil, false
}

// TableName returns the declared table, falling back to the tableized
// type name (e.g. "Manuscript" -> "manuscripts").
func (d *Definition) TableName() string {
	if d.Table != "" {
		return d.Table
	}
	return inflect.Tableize(d.Name)
}

// ResolveEnum resolves an "Enum.Key" reference against the definition's
// enums. The second return value is false when either part is missing.
func (d *Definition) ResolveEnum(enum, key string) (any, bool) {
	e, ok := d.Enums[enum]
	if !ok {
		return nil, false
	}
	v, ok := e.Values[key]
	return v, ok
}
