package resolver

import (
	"context"
	"reflect"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/curator"
	"github.com/syssam/curator/acl"
	"github.com/syssam/curator/model"
	"github.com/syssam/curator/storage"
	"github.com/syssam/curator/workflow"
)

// CompleteTaskInput carries the arguments of a task completion.
type CompleteTaskInput struct {
	ID      string
	TaskID  string
	Form    string
	Outcome string

	// State holds client-supplied state-field overrides. Keys outside
	// the declared state fields are ignored.
	State map[string]any
}

// CompleteTask drives one workflow task to completion: validates the
// submission against the outcome's rule set, applies forced state,
// sequence and date assignments, persists the entity when it changed and
// submits the task to the engine. ValidatedEmailRequired and
// ValidationFailed are policy outcomes, not errors.
func (r *Resolver) CompleteTask(ctx context.Context, in CompleteTaskInput) (curator.CompletionResult, error) {
	switch {
	case in.ID == "":
		return "", curator.NewUserInputError("id")
	case in.TaskID == "":
		return "", curator.NewUserInputError("taskId")
	case in.Form == "":
		return "", curator.NewUserInputError("form")
	case in.Outcome == "":
		return "", curator.NewUserInputError("outcome")
	}
	form, ok := r.def.Form(in.Form)
	if !ok {
		return "", curator.NewNotFoundError("form")
	}
	outcome, ok := form.Outcome(in.Outcome)
	if !ok {
		return "", curator.NewNotFoundError("outcome")
	}
	if outcome.Result != model.ResultComplete {
		return "", curator.NewLogicError("outcome %q does not complete the task", in.Outcome)
	}

	entity, sub, task, err := r.prefetch(ctx, in, outcome)
	if err != nil {
		return "", err
	}

	if _, err := r.authorizeAccess(ctx, sub, entity); err != nil {
		return "", err
	}
	match, err := r.authorize(ctx, sub, entity, acl.ActionTask)
	if err != nil {
		return "", err
	}
	if outcome.RequiresValidatedSubmitter {
		if sub == nil {
			return "", curator.NewAuthorizationError(string(acl.ActionTask))
		}
		if !sub.EmailVerified {
			return curator.ValidatedEmailRequired, nil
		}
	}
	if !match.PermitsTask(task.TaskDefinitionKey) {
		return "", curator.NewAuthorizationError(string(acl.ActionTask))
	}
	if outcome.Validation != nil && !outcome.SkipValidations {
		if failures := outcome.Validation.Evaluate(entity); len(failures) > 0 {
			return curator.ValidationFailed, nil
		}
	}

	state := r.filteredState(in.State, outcome)
	changed := applyState(entity, state)

	assigned, err := r.assignSequences(ctx, entity, outcome)
	if err != nil {
		return "", err
	}
	changed = mergeChanges(changed, assigned)
	changed = mergeChanges(changed, r.assignDates(entity, outcome))

	if len(changed) > 0 {
		now := r.clock().UTC()
		entity.Touch(now)
		changed[curator.FieldUpdated] = now
		if err := r.store.Update(ctx, r.table(), in.ID, changed); err != nil {
			return "", err
		}
		r.rememberInstance(ctx, entity)
	}

	if err := r.engine.CompleteTask(ctx, in.TaskID, workflow.MarshalState(state)); err != nil {
		return "", err
	}
	r.publishUpdated(ctx, in.ID)
	return curator.Success, nil
}

// prefetch loads the entity, subject and target task concurrently. The
// entity is eagerly loaded along every relation the outcome's validation
// rules reach through.
func (r *Resolver) prefetch(ctx context.Context, in CompleteTaskInput, outcome *model.Outcome) (curator.Entity, *curator.Subject, *workflow.Task, error) {
	var (
		mu     sync.Mutex
		entity curator.Entity
		sub    *curator.Subject
		task   *workflow.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := r.store.Get(gctx, r.table(), in.ID, nil, r.validationEagerPaths(outcome))
		if err != nil {
			return err
		}
		mu.Lock()
		entity = e
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		s, err := r.subject(gctx)
		if err != nil {
			return err
		}
		mu.Lock()
		sub = s
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		tasks, err := r.engine.ListTasks(gctx, workflow.TaskQuery{ProcessInstanceBusinessKey: in.ID})
		if err != nil {
			return err
		}
		for i := range tasks {
			if tasks[i].ID == in.TaskID {
				mu.Lock()
				task = &tasks[i]
				mu.Unlock()
				return nil
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	if task == nil {
		return nil, nil, nil, curator.NewNotFoundErrorWithID("task", in.TaskID)
	}
	r.rememberInstance(ctx, entity)
	return entity, sub, task, nil
}

// validationEagerPaths intersects the model's relations with the
// bindings the outcome's validation rules reference, so related entities
// the rules inspect are present at evaluation time.
func (r *Resolver) validationEagerPaths(outcome *model.Outcome) []storage.EagerPath {
	if outcome.Validation == nil {
		return nil
	}
	bindings := outcome.Validation.Bindings()
	var paths []storage.EagerPath
	for _, e := range r.intro.Relations() {
		if !slices.Contains(bindings, e.Field) {
			continue
		}
		if p, ok := r.nestedEagerPath(e); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

// filteredState restricts client state to declared state fields and
// overlays the outcome's forced directives, which win over client
// values. An enum directive that resolves to nothing is dropped.
func (r *Resolver) filteredState(client map[string]any, outcome *model.Outcome) map[string]any {
	state := make(map[string]any, len(client)+len(outcome.State))
	for key, v := range client {
		if r.intro.IsState(key) {
			state[key] = v
		}
	}
	for key, directive := range outcome.State {
		switch directive.Type {
		case "enum":
			ref, _ := directive.Value.(string)
			if v, ok := r.intro.ResolveEnumRef(ref); ok {
				state[key] = v
			}
		case "simple":
			state[key] = directive.Value
		}
	}
	return state
}

// applyState writes state values onto the entity and returns the keys
// that actually changed.
func applyState(entity curator.Entity, state map[string]any) map[string]any {
	changed := make(map[string]any)
	for key, v := range state {
		if cur, ok := entity[key]; ok && reflect.DeepEqual(cur, v) {
			continue
		}
		entity[key] = v
		changed[key] = v
	}
	return changed
}

// assignSequences allocates identifiers for the outcome's sequence
// assignments whose fields are still empty. Allocations run in parallel
// and the step fails as a whole when any of them does.
func (r *Resolver) assignSequences(ctx context.Context, entity curator.Entity, outcome *model.Outcome) (map[string]any, error) {
	var (
		mu       sync.Mutex
		assigned = make(map[string]any)
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, field := range outcome.SequenceAssignment {
		e, ok := r.intro.Sequence(field)
		if !ok || !entity.Empty(field) {
			continue
		}
		g.Go(func() error {
			v, err := r.store.NextSequence(gctx, e.IDSequence)
			if err != nil {
				return err
			}
			mu.Lock()
			assigned[e.Field] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for key, v := range assigned {
		entity[key] = v
	}
	return assigned, nil
}

// assignDates stamps the outcome's date assignments with the current
// instant for every declared datetime field.
func (r *Resolver) assignDates(entity curator.Entity, outcome *model.Outcome) map[string]any {
	if len(outcome.DateAssignments) == 0 {
		return nil
	}
	now := r.clock().UTC()
	changed := make(map[string]any)
	for _, da := range outcome.DateAssignments {
		if !r.intro.IsDatetime(da.Field) {
			continue
		}
		entity[da.Field] = now
		changed[da.Field] = now
	}
	return changed
}

func mergeChanges(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
