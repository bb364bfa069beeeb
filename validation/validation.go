// Package validation evaluates pre-compiled validation sets against entity
// instances during task completion. The authoring-format compiler that
// produces the sets lives outside this module; definitions carry them
// ready to run.
package validation

import (
	"fmt"
	"strings"

	"github.com/syssam/curator"
)

// Rule checks one bound value of an entity. Bindings are dotted paths;
// a path through a relation requires that relation to be eagerly loaded.
type Rule struct {
	Binding string `yaml:"binding"`
	Op      string `yaml:"op"`
	Value   any    `yaml:"value,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// Supported rule operations.
const (
	OpRequired  = "required"
	OpNonEmpty  = "nonEmpty"
	OpMinLength = "minLength"
	OpEquals    = "equals"
	OpOneOf     = "oneOf"
)

// Set is an ordered collection of rules evaluated together.
type Set struct {
	Rules []Rule `yaml:"rules"`
}

// Failure describes one rule rejection.
type Failure struct {
	Binding string
	Message string
}

// Bindings returns the unique first path segments the set's rules
// reference. The task completion engine intersects them with the model's
// relation fields to decide what to eagerly load.
func (s *Set) Bindings() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range s.Rules {
		head, _, _ := strings.Cut(r.Binding, ".")
		if head == "" || seen[head] {
			continue
		}
		seen[head] = true
		out = append(out, head)
	}
	return out
}

// Evaluate runs every rule against the entity and returns the failures.
// An empty result means the entity passed.
func (s *Set) Evaluate(e curator.Entity) []Failure {
	if s == nil {
		return nil
	}
	var failures []Failure
	for _, r := range s.Rules {
		if ok := r.check(e); !ok {
			failures = append(failures, Failure{Binding: r.Binding, Message: r.message()})
		}
	}
	return failures
}

func (r Rule) message() string {
	if r.Message != "" {
		return r.Message
	}
	return fmt.Sprintf("%s failed %s", r.Binding, r.Op)
}

func (r Rule) check(e curator.Entity) bool {
	v, present := resolve(e, r.Binding)
	switch r.Op {
	case OpRequired:
		return present && v != nil
	case OpNonEmpty:
		s, ok := v.(string)
		return present && (!ok || s != "")
	case OpMinLength:
		s, _ := v.(string)
		min, ok := asInt(r.Value)
		return ok && len(s) >= min
	case OpEquals:
		return present && fmt.Sprintf("%v", v) == fmt.Sprintf("%v", r.Value)
	case OpOneOf:
		vs, ok := r.Value.([]any)
		if !ok {
			return false
		}
		for _, want := range vs {
			if fmt.Sprintf("%v", v) == fmt.Sprintf("%v", want) {
				return true
			}
		}
		return false
	default:
		// Unknown operations fail closed.
		return false
	}
}

// resolve walks a dotted binding through nested entity maps.
func resolve(e curator.Entity, binding string) (any, bool) {
	var cur any = map[string]any(e)
	for _, part := range strings.Split(binding, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case curator.Entity:
		return m, true
	default:
		return nil, false
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
