// Package acl evaluates access control policies over subject target sets.
//
// A policy is an ordered rule chain; evaluation selects the best-matching
// rule for a (targets, action) pair, where rules bound to a more specific
// target win over broader ones and later rules break ties. An absent
// policy is permissive.
package acl

import (
	"context"
	"slices"

	"github.com/syssam/curator"
)

// Action is the operation class a rule applies to.
type Action string

const (
	ActionAccess  Action = "access"
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionCreate  Action = "create"
	ActionDestroy Action = "destroy"
	ActionTask    Action = "task"
)

// Target is a role-like tag attached to a subject for policy evaluation.
type Target string

const (
	TargetAnonymous     Target = "anonymous"
	TargetUser          Target = "user"
	TargetAdministrator Target = "administrator"
	TargetOwner         Target = "owner"
)

// targetRank orders targets by specificity for best-match selection.
var targetRank = map[Target]int{
	TargetAnonymous:     0,
	TargetUser:          1,
	TargetAdministrator: 2,
	TargetOwner:         3,
}

// Restriction is a coarse row-level visibility scope.
type Restriction string

const (
	// RestrictionAll grants cross-entity visibility.
	RestrictionAll Restriction = "all"
	// RestrictionOwner limits visibility to entities the subject owns.
	RestrictionOwner Restriction = "owner"
)

// Rule grants or denies a set of actions to a set of targets, optionally
// constraining fields, row scopes and workflow tasks.
type Rule struct {
	Description  string        `yaml:"description,omitempty"`
	Targets      []Target      `yaml:"targets"`
	Actions      []Action      `yaml:"actions"`
	Allow        bool          `yaml:"allow"`
	Fields       []string      `yaml:"fields,omitempty"`
	Restrictions []Restriction `yaml:"restrictions,omitempty"`
	Tasks        []string      `yaml:"tasks,omitempty"`
}

func (r Rule) matches(targets []Target, action Action) (Target, bool) {
	if !slices.Contains(r.Actions, action) {
		return "", false
	}
	best, found := Target(""), false
	for _, t := range r.Targets {
		if !slices.Contains(targets, t) {
			continue
		}
		if !found || targetRank[t] > targetRank[best] {
			best, found = t, true
		}
	}
	return best, found
}

// Policy is an ordered rule chain.
type Policy struct {
	Rules []Rule `yaml:"rules"`
}

// Match is the outcome of a policy evaluation.
type Match struct {
	Allow bool

	// AllowedFields constrains field exposure or acceptance when set;
	// unset permits every declared readable or writable field.
	AllowedFields []string

	// AllowedRestrictions is the row-level scope of the match; unset
	// means unrestricted.
	AllowedRestrictions []Restriction

	// AllowedTasks restricts which task definition keys may be listed
	// or completed; unset permits all.
	AllowedTasks []string

	// MatchingRules records every rule the evaluation considered matched.
	MatchingRules []Rule
}

// PermitsScope reports whether the match's restriction scope admits an
// entity given the subject's owner flag for that entity.
func (m Match) PermitsScope(owner bool) bool {
	if m.AllowedRestrictions == nil {
		return true
	}
	if slices.Contains(m.AllowedRestrictions, RestrictionAll) {
		return true
	}
	return owner && slices.Contains(m.AllowedRestrictions, RestrictionOwner)
}

// PermitsField reports whether the match admits the given field,
// treating an unset field list as permissive.
func (m Match) PermitsField(field string) bool {
	return m.AllowedFields == nil || slices.Contains(m.AllowedFields, field)
}

// PermitsTask reports whether the match admits the given task
// definition key, treating an unset task list as permissive.
func (m Match) PermitsTask(key string) bool {
	return m.AllowedTasks == nil || slices.Contains(m.AllowedTasks, key)
}

// TargetsFor derives the subject tag set, optionally against a concrete
// entity. Every subject carries anonymous; identity adds user and, with
// the admin flag, administrator; the owner tag is added when any owner
// join field of the entity equals the subject id.
func TargetsFor(sub *curator.Subject, entity curator.Entity, ownerJoinFields []string) []Target {
	targets := []Target{TargetAnonymous}
	if sub == nil {
		return targets
	}
	targets = append(targets, TargetUser)
	if sub.Admin {
		targets = append(targets, TargetAdministrator)
	}
	if entity != nil && IsOwner(sub, entity, ownerJoinFields) {
		targets = append(targets, TargetOwner)
	}
	return targets
}

// IsOwner reports whether any owner join field of the entity equals the
// subject id. Multiple owner links combine with logical OR.
func IsOwner(sub *curator.Subject, entity curator.Entity, ownerJoinFields []string) bool {
	if sub == nil || entity == nil {
		return false
	}
	for _, f := range ownerJoinFields {
		if id, ok := entity[f].(string); ok && id != "" && id == sub.ID {
			return true
		}
	}
	return false
}

// Evaluator evaluates a policy with optional decision tracing.
type Evaluator struct {
	policy *Policy
	trace  TraceSink
}

// NewEvaluator returns an evaluator over the given policy. A nil policy
// is permissive. A nil sink disables tracing.
func NewEvaluator(policy *Policy, trace TraceSink) *Evaluator {
	if trace == nil {
		trace = NopSink{}
	}
	return &Evaluator{policy: policy, trace: trace}
}

// Evaluate selects the best-matching rule for the targets and action.
func (e *Evaluator) Evaluate(ctx context.Context, targets []Target, action Action) Match {
	match := e.evaluate(targets, action)
	e.trace.Trace(ctx, Decision{
		Action:  action,
		Targets: targets,
		Owner:   slices.Contains(targets, TargetOwner),
		Rules:   ruleDescriptions(match.MatchingRules),
		Allow:   match.Allow,
	})
	return match
}

func (e *Evaluator) evaluate(targets []Target, action Action) Match {
	if e.policy == nil {
		return Match{Allow: true}
	}
	var (
		matched  []Rule
		best     *Rule
		bestRank = -1
	)
	for i := range e.policy.Rules {
		r := e.policy.Rules[i]
		t, ok := r.matches(targets, action)
		if !ok {
			continue
		}
		matched = append(matched, r)
		// Later rules win ties.
		if rank := targetRank[t]; rank >= bestRank {
			best, bestRank = &e.policy.Rules[i], rank
		}
	}
	if best == nil {
		return Match{MatchingRules: matched}
	}
	return Match{
		Allow:               best.Allow,
		AllowedFields:       best.Fields,
		AllowedRestrictions: best.Restrictions,
		AllowedTasks:        best.Tasks,
		MatchingRules:       matched,
	}
}

func ruleDescriptions(rules []Rule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.Description != "" {
			out = append(out, r.Description)
		}
	}
	return out
}
