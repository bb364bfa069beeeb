package resolver

import (
	"context"
	"slices"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/curator"
	"github.com/syssam/curator/acl"
	"github.com/syssam/curator/graph"
	"github.com/syssam/curator/pubsub"
	"github.com/syssam/curator/workflow"
)

// PageInfo describes the window of a listing result.
type PageInfo struct {
	TotalCount int `json:"totalCount"`
	Offset     int `json:"offset"`
	PageSize   int `json:"pageSize"`
}

// Page is one listing result page.
type Page struct {
	Results  []curator.Entity `json:"results"`
	PageInfo PageInfo         `json:"pageInfo"`
}

// Get fetches one entity by id, gated by the access ACL and projected
// through the read ACL.
func (r *Resolver) Get(ctx context.Context, id string) (curator.Entity, error) {
	if id == "" {
		return nil, curator.NewUserInputError(curator.FieldID)
	}
	sub, err := r.subject(ctx)
	if err != nil {
		return nil, err
	}
	fields := graph.RequestedFields(ctx)
	entity, err := r.store.Get(ctx, r.table(), id, r.getColumns(fields), r.eagerPaths(fields))
	if err != nil {
		return nil, err
	}
	r.rememberInstance(ctx, entity)
	if _, err := r.authorizeAccess(ctx, sub, entity); err != nil {
		return nil, err
	}
	return r.project(ctx, sub, entity, fields), nil
}

func (r *Resolver) getColumns(fields []graph.Field) []string {
	if len(fields) == 0 {
		return nil
	}
	return r.projection(fields)
}

// List returns a page of entities matching the listing input. Rows the
// subject may not access are excluded by the planned ownership scope;
// rows returned are individually projected through the read ACL.
func (r *Resolver) List(ctx context.Context, in ListInput) (*Page, error) {
	sub, err := r.subject(ctx)
	if err != nil {
		return nil, err
	}
	targets := acl.TargetsFor(sub, nil, r.intro.OwnerJoinFields())
	match := r.eval.Evaluate(ctx, targets, acl.ActionAccess)
	if !match.Allow {
		return nil, curator.NewAuthorizationError(string(acl.ActionAccess))
	}
	fields := listFields(ctx)
	plan, err := r.planList(ctx, fields, in, match, sub)
	if err != nil {
		return nil, err
	}
	entities, total, err := r.store.List(ctx, plan.sel, plan.eager)
	if err != nil {
		return nil, err
	}
	return &Page{
		Results: r.projectAll(ctx, sub, entities, fields),
		PageInfo: PageInfo{
			TotalCount: total,
			Offset:     plan.offset,
			PageSize:   plan.pageSize,
		},
	}, nil
}

// listFields returns the entity sub-selection of a listing request. The
// listing result nests entities under "results"; a flat selection is
// used as-is.
func listFields(ctx context.Context) []graph.Field {
	fields := graph.RequestedFields(ctx)
	if f, ok := graph.Find(fields, "results"); ok {
		return f.Selections
	}
	return fields
}

// ResolveRelation resolves one relation field of a parent entity against
// the related type's resolver, reusing the eagerly loaded value when the
// parent carries one.
func (r *Resolver) ResolveRelation(ctx context.Context, parent curator.Entity, field string) (curator.Entity, error) {
	e, ok := r.intro.Relation(field)
	if !ok {
		return nil, curator.NewLogicError("%s has no relation %q", r.def.Name, field)
	}
	target, ok := r.relationTarget(e)
	if !ok {
		return nil, curator.NewLogicError("no resolver registered for type %q", e.Type)
	}
	if nested, ok := parent[e.Field].(curator.Entity); ok {
		sub, err := r.subject(ctx)
		if err != nil {
			return nil, err
		}
		return target.project(ctx, sub, nested, graph.RequestedFields(ctx)), nil
	}
	id, _ := parent[e.JoinColumn()].(string)
	if id == "" {
		return nil, nil
	}
	return target.Get(ctx, id)
}

// Create instantiates a new entity: owner fields are stamped from the
// subject, declared defaults applied, the paired process started and a
// created event published.
func (r *Resolver) Create(ctx context.Context) (curator.Entity, error) {
	sub, err := r.subject(ctx)
	if err != nil {
		return nil, err
	}
	targets := acl.TargetsFor(sub, nil, r.intro.OwnerJoinFields())
	if match := r.eval.Evaluate(ctx, targets, acl.ActionCreate); !match.Allow {
		return nil, curator.NewAuthorizationError(string(acl.ActionCreate))
	}

	now := r.clock().UTC()
	entity := curator.Entity{
		curator.FieldID:      r.newID(),
		curator.FieldCreated: now,
		curator.FieldUpdated: now,
	}
	if sub != nil {
		for _, column := range r.intro.OwnerJoinFields() {
			entity[column] = sub.ID
		}
	}
	for _, e := range r.def.Elements {
		if e.Field == "" {
			continue
		}
		if _, ok := entity[e.Field]; ok {
			continue
		}
		if v, ok := r.intro.Default(e); ok {
			entity[e.Field] = v
		}
	}
	if err := r.store.Insert(ctx, r.table(), entity); err != nil {
		return nil, err
	}
	r.rememberInstance(ctx, entity)

	// A process-start failure after the save leaves the entity behind;
	// the save is not rolled back.
	if r.def.ProcessKey != "" {
		_, err := r.engine.StartProcess(ctx, workflow.StartProcessRequest{
			Key:         r.def.ProcessKey,
			BusinessKey: entity.ID(),
		})
		if err != nil {
			return nil, err
		}
	}
	r.publishCreated(ctx, entity.ID())
	return r.project(ctx, sub, entity, graph.RequestedFields(ctx)), nil
}

// Update applies client input to one entity. Input keys outside the
// write-allowed field set fail the whole operation instead of being
// dropped.
func (r *Resolver) Update(ctx context.Context, id string, input map[string]any) (curator.Entity, error) {
	if id == "" {
		return nil, curator.NewUserInputError(curator.FieldID)
	}
	if !r.def.Input {
		return nil, curator.NewLogicError("%s does not accept input", r.def.Name)
	}
	entity, err := r.ResolveInstanceUsingContext(ctx, id)
	if err != nil {
		return nil, err
	}
	sub, err := r.subject(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := r.authorizeAccess(ctx, sub, entity); err != nil {
		return nil, err
	}
	match, err := r.authorize(ctx, sub, entity, acl.ActionWrite)
	if err != nil {
		return nil, err
	}

	allowed := r.allowedInputSet(match)
	var disallowed []string
	for key := range input {
		if !allowed[key] {
			disallowed = append(disallowed, key)
		}
	}
	if len(disallowed) > 0 {
		slices.Sort(disallowed)
		return nil, curator.NewAuthorizationError(string(acl.ActionWrite), disallowed...)
	}

	now := r.clock().UTC()
	changes := make(map[string]any, len(input)+1)
	for key, v := range input {
		entity[key] = v
		changes[key] = v
	}
	entity.Touch(now)
	changes[curator.FieldUpdated] = now
	if err := r.store.Update(ctx, r.table(), id, changes); err != nil {
		return nil, err
	}
	r.rememberInstance(ctx, entity)
	r.publishUpdated(ctx, id)
	return r.project(ctx, sub, entity, graph.RequestedFields(ctx)), nil
}

func (r *Resolver) allowedInputSet(match acl.Match) map[string]bool {
	allowed := make(map[string]bool, len(r.intro.InputFields()))
	for _, f := range r.intro.InputFields() {
		if match.PermitsField(f) {
			allowed[f] = true
		}
	}
	return allowed
}

// Destroy applies terminal state overrides and cancels the paired
// process instance. State keys outside the declared state fields are
// dropped; the terminal transition is exempt from the write ACL.
func (r *Resolver) Destroy(ctx context.Context, id string, state map[string]any) (curator.Entity, error) {
	if id == "" {
		return nil, curator.NewUserInputError(curator.FieldID)
	}
	entity, err := r.ResolveInstanceUsingContext(ctx, id)
	if err != nil {
		return nil, err
	}
	sub, err := r.subject(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := r.authorizeAccess(ctx, sub, entity); err != nil {
		return nil, err
	}
	if _, err := r.authorize(ctx, sub, entity, acl.ActionDestroy); err != nil {
		return nil, err
	}

	changes := make(map[string]any, len(state))
	for key, v := range state {
		if !r.intro.IsState(key) {
			continue
		}
		entity[key] = v
		changes[key] = v
	}
	if len(changes) > 0 {
		now := r.clock().UTC()
		entity.Touch(now)
		changes[curator.FieldUpdated] = now
		if err := r.store.Update(ctx, r.table(), id, changes); err != nil {
			return nil, err
		}
		r.rememberInstance(ctx, entity)
	}

	instances, err := r.engine.ListProcessInstances(ctx, workflow.InstanceQuery{BusinessKey: id})
	if err != nil {
		return nil, err
	}
	for _, instance := range instances {
		if !strings.EqualFold(instance.BusinessKey, id) {
			continue
		}
		if err := r.engine.DeleteProcessInstance(ctx, instance.ID); err != nil {
			return nil, err
		}
	}
	r.publishUpdated(ctx, id)
	return r.project(ctx, sub, entity, graph.RequestedFields(ctx)), nil
}

// Restart begins a fresh process for an existing entity after the given
// activity, carrying the current state fields as process variables.
func (r *Resolver) Restart(ctx context.Context, id, activityID string) error {
	if id == "" {
		return curator.NewUserInputError(curator.FieldID)
	}
	entity, err := r.ResolveInstanceUsingContext(ctx, id)
	if err != nil {
		return err
	}
	sub, err := r.subject(ctx)
	if err != nil {
		return err
	}
	if _, err := r.authorizeAccess(ctx, sub, entity); err != nil {
		return err
	}

	state := make(map[string]any)
	for _, e := range r.intro.States() {
		if v, ok := entity[e.Field]; ok {
			state[e.Field] = v
		}
	}
	_, err = r.engine.StartProcess(ctx, workflow.StartProcessRequest{
		Key:         r.def.ProcessKey,
		BusinessKey: id,
		StartInstructions: []workflow.StartInstruction{
			{Type: workflow.StartAfterActivity, ActivityID: activityID},
		},
		Variables: workflow.MarshalState(state),
	})
	if err != nil {
		return err
	}
	r.publishUpdated(ctx, id)
	return nil
}

// GetTasks lists the open workflow tasks of one entity, filtered by the
// task ACL and stripped of engine transport links.
func (r *Resolver) GetTasks(ctx context.Context, id string) ([]workflow.Task, error) {
	if id == "" {
		return nil, curator.NewUserInputError(curator.FieldID)
	}
	entity, err := r.ResolveInstanceUsingContext(ctx, id)
	if err != nil {
		return nil, err
	}
	sub, err := r.subject(ctx)
	if err != nil {
		return nil, err
	}
	match, err := r.authorize(ctx, sub, entity, acl.ActionTask)
	if err != nil {
		return nil, err
	}
	tasks, err := r.engine.ListTasks(ctx, workflow.TaskQuery{ProcessInstanceBusinessKey: id})
	if err != nil {
		return nil, err
	}
	tasks = workflow.StripLinks(tasks)
	allowed := tasks[:0]
	for _, t := range tasks {
		if match.PermitsTask(t.TaskDefinitionKey) {
			allowed = append(allowed, t)
		}
	}
	return allowed, nil
}

// TopicCreated is the pub/sub topic carrying created events of this type.
func (r *Resolver) TopicCreated() string { return r.def.Name + ".created" }

// TopicUpdated is the pub/sub topic carrying updated events of this type.
func (r *Resolver) TopicUpdated() string { return r.def.Name + ".updated" }

// SubscribeCreated streams created events until the returned stop
// function is called.
func (r *Resolver) SubscribeCreated(ctx context.Context) (<-chan pubsub.Event, func(), error) {
	return r.notifier.Subscribe(ctx, r.TopicCreated())
}

// SubscribeUpdated streams updated events until the returned stop
// function is called.
func (r *Resolver) SubscribeUpdated(ctx context.Context) (<-chan pubsub.Event, func(), error) {
	return r.notifier.Subscribe(ctx, r.TopicUpdated())
}

// Publish failures do not fail the operation that produced the event;
// subscribers miss one notification and the detail is logged.

func (r *Resolver) publishCreated(ctx context.Context, id string) {
	payload := map[string]any{"created" + inflect.Camelize(r.def.Name): id}
	if err := r.notifier.Publish(ctx, r.TopicCreated(), payload); err != nil {
		r.logger.Warn("publish created event", "type", r.def.Name, "id", id, "err", err)
	}
}

func (r *Resolver) publishUpdated(ctx context.Context, id string) {
	payload := map[string]any{"modified" + inflect.Camelize(r.def.Name): id}
	if err := r.notifier.Publish(ctx, r.TopicUpdated(), payload); err != nil {
		r.logger.Warn("publish updated event", "type", r.def.Name, "id", id, "err", err)
	}
}
