// Package resolver implements the model-driven instance resolver: given a
// declarative model definition and an ACL policy it provides consistent
// CRUD, listing, relation traversal and workflow-task completion for an
// entity type, backed by the storage, workflow and pubsub packages.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/curator"
	"github.com/syssam/curator/acl"
	"github.com/syssam/curator/model"
	"github.com/syssam/curator/pubsub"
	"github.com/syssam/curator/storage"
	"github.com/syssam/curator/workflow"
)

// IdentityResolver resolves the authenticated subject of a request.
// Returning a nil subject means the request is anonymous.
type IdentityResolver interface {
	Resolve(ctx context.Context) (*curator.Subject, error)
}

// IdentityFunc adapts a function to an IdentityResolver.
type IdentityFunc func(ctx context.Context) (*curator.Subject, error)

// Resolve implements IdentityResolver.
func (f IdentityFunc) Resolve(ctx context.Context) (*curator.Subject, error) {
	return f(ctx)
}

// Config assembles a Resolver.
type Config struct {
	Definition *model.Definition
	Store      *storage.Store
	Engine     workflow.Engine
	Notifier   pubsub.Notifier

	// Identity is optional; without it every request is anonymous.
	Identity IdentityResolver

	// Registry connects resolvers of related types for relation
	// traversal and eager planning. Optional.
	Registry *Registry

	// Trace receives ACL decisions when rule tracing is enabled.
	Trace acl.TraceSink

	Logger *slog.Logger

	// Clock and NewID are injectable for tests.
	Clock func() time.Time
	NewID func() string
}

// resolverSerial hands out process-wide unique resolver ids, keying the
// request-scoped instance cache so different resolvers never collide.
var resolverSerial atomic.Int64

// Resolver serves every operation of one entity type. Resolvers are
// process-scoped singletons and hold no mutable state past construction
// except the one-time relation-target memoization.
type Resolver struct {
	id       int64
	def      *model.Definition
	intro    *model.Introspection
	eval     *acl.Evaluator
	store    *storage.Store
	engine   workflow.Engine
	notifier pubsub.Notifier
	identity IdentityResolver
	registry *Registry
	logger   *slog.Logger
	clock    func() time.Time
	newID    func() string

	relOnce    sync.Once
	relTargets map[string]*Resolver
}

// New constructs a Resolver and registers it with the configured registry.
func New(cfg Config) (*Resolver, error) {
	switch {
	case cfg.Definition == nil:
		return nil, fmt.Errorf("resolver: config requires a model definition")
	case cfg.Store == nil:
		return nil, fmt.Errorf("resolver: config requires a store")
	case cfg.Engine == nil:
		return nil, fmt.Errorf("resolver: config requires a workflow engine")
	case cfg.Notifier == nil:
		return nil, fmt.Errorf("resolver: config requires a notifier")
	}
	r := &Resolver{
		id:       resolverSerial.Add(1),
		def:      cfg.Definition,
		intro:    model.Introspect(cfg.Definition),
		eval:     acl.NewEvaluator(cfg.Definition.ACL, cfg.Trace),
		store:    cfg.Store,
		engine:   cfg.Engine,
		notifier: cfg.Notifier,
		identity: cfg.Identity,
		registry: cfg.Registry,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		newID:    cfg.NewID,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	if r.registry != nil {
		r.registry.register(r)
	}
	return r, nil
}

// Name returns the entity type name the resolver serves.
func (r *Resolver) Name() string { return r.def.Name }

// Model returns the introspected model.
func (r *Resolver) Model() *model.Introspection { return r.intro }

func (r *Resolver) table() string { return r.def.TableName() }

// relationTarget returns the resolver serving the target type of a
// traversable element. The lookup is memoized once per resolver.
func (r *Resolver) relationTarget(e model.Element) (*Resolver, bool) {
	r.relOnce.Do(func() {
		r.relTargets = make(map[string]*Resolver)
		if r.registry == nil {
			return
		}
		for _, rel := range r.intro.Relations() {
			if target, ok := r.registry.lookup(rel.Type); ok {
				r.relTargets[rel.Field] = target
			}
		}
	})
	target, ok := r.relTargets[e.Field]
	return target, ok
}

// subject resolves the authenticated subject, memoized for the request.
func (r *Resolver) subject(ctx context.Context) (*curator.Subject, error) {
	req := requestFrom(ctx)
	if req != nil {
		if sub, done := req.cachedSubject(); done {
			return sub, nil
		}
	}
	var sub *curator.Subject
	if r.identity != nil {
		var err error
		if sub, err = r.identity.Resolve(ctx); err != nil {
			return nil, err
		}
	}
	if req != nil {
		req.storeSubject(sub)
	}
	return sub, nil
}

// Registry connects the resolvers of a deployment so relations can be
// traversed across types.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Resolver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Resolver)}
}

func (g *Registry) register(r *Resolver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byName[r.def.Name] = r
}

func (g *Registry) lookup(name string) (*Resolver, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.byName[name]
	return r, ok
}

// Lookup returns the resolver registered for the given type name.
func (g *Registry) Lookup(name string) (*Resolver, bool) {
	return g.lookup(name)
}
