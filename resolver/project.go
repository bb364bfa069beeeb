package resolver

import (
	"context"
	"slices"

	"github.com/syssam/curator"
	"github.com/syssam/curator/acl"
	"github.com/syssam/curator/graph"
)

// fixedReadFields are always exposable regardless of the ACL field set.
var fixedReadFields = []string{
	curator.FieldID,
	curator.FieldCreated,
	curator.FieldUpdated,
	curator.FieldTasks,
	curator.FieldRestrictedFields,
}

// project rewrites one retrieved entity for the caller: the read ACL is
// re-evaluated against this specific row (the owner flag differs per
// row), disallowed fields are withheld and reported under
// restrictedFields. A denied read still exposes the id.
func (r *Resolver) project(ctx context.Context, sub *curator.Subject, entity curator.Entity, fields []graph.Field) curator.Entity {
	requested := requestedNames(fields, entity)
	targets := acl.TargetsFor(sub, entity, r.intro.OwnerJoinFields())
	match := r.eval.Evaluate(ctx, targets, acl.ActionRead)

	out := curator.Entity{curator.FieldID: entity.ID()}
	if !match.Allow {
		var restricted []string
		for _, name := range requested {
			if name != curator.FieldID {
				restricted = append(restricted, name)
			}
		}
		if len(restricted) > 0 {
			out[curator.FieldRestrictedFields] = restricted
		}
		return out
	}

	allowed := r.allowedReadSet(match)
	var restricted []string
	for _, name := range requested {
		if name == curator.FieldID {
			continue
		}
		if !allowed[name] {
			restricted = append(restricted, name)
			continue
		}
		if v, ok := entity[name]; ok {
			out[name] = v
		}
	}
	if len(restricted) > 0 {
		out[curator.FieldRestrictedFields] = restricted
	}
	return out
}

func (r *Resolver) projectAll(ctx context.Context, sub *curator.Subject, entities []curator.Entity, fields []graph.Field) []curator.Entity {
	out := make([]curator.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, r.project(ctx, sub, e, fields))
	}
	return out
}

// allowedReadSet intersects the declared read fields with the match's
// field constraint and adds the fixed exposures.
func (r *Resolver) allowedReadSet(match acl.Match) map[string]bool {
	allowed := make(map[string]bool, len(r.intro.ReadFields())+len(fixedReadFields))
	for _, f := range r.intro.ReadFields() {
		if match.PermitsField(f) {
			allowed[f] = true
		}
	}
	for _, f := range fixedReadFields {
		allowed[f] = true
	}
	return allowed
}

// requestedNames lists the top-level requested fields; without a field
// selection every field present on the entity counts as requested.
func requestedNames(fields []graph.Field, entity curator.Entity) []string {
	if len(fields) > 0 {
		return graph.Names(fields)
	}
	names := make([]string, 0, len(entity))
	for name := range entity {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// authorizeAccess gates an operation on the access ACL of one entity,
// enforcing the restriction scope against the row's owner flag.
func (r *Resolver) authorizeAccess(ctx context.Context, sub *curator.Subject, entity curator.Entity) (acl.Match, error) {
	targets := acl.TargetsFor(sub, entity, r.intro.OwnerJoinFields())
	match := r.eval.Evaluate(ctx, targets, acl.ActionAccess)
	if !match.Allow {
		return match, curator.NewAuthorizationError(string(acl.ActionAccess))
	}
	owner := acl.IsOwner(sub, entity, r.intro.OwnerJoinFields())
	if !match.PermitsScope(owner) {
		return match, curator.NewAuthorizationError(string(acl.ActionAccess))
	}
	return match, nil
}

// authorize evaluates one action ACL against an entity without scope
// enforcement.
func (r *Resolver) authorize(ctx context.Context, sub *curator.Subject, entity curator.Entity, action acl.Action) (acl.Match, error) {
	targets := acl.TargetsFor(sub, entity, r.intro.OwnerJoinFields())
	match := r.eval.Evaluate(ctx, targets, action)
	if !match.Allow {
		return match, curator.NewAuthorizationError(string(action))
	}
	return match, nil
}
