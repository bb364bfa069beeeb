package resolver

import (
	"context"
	"sync"

	"github.com/syssam/curator"
)

// request is the per-GraphQL-request memoization bag. It is owned
// exclusively by one request and mutated only by its resolver chain.
type request struct {
	mu         sync.Mutex
	subject    *curator.Subject
	subjectSet bool

	// lookup memoizes fetched instances keyed by resolver id then
	// entity id.
	lookup map[int64]map[string]curator.Entity
}

type requestCtxKey struct{}

// WithRequest returns a context carrying a fresh request-scoped cache.
// Servers install it once per incoming request.
func WithRequest(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, &request{
		lookup: make(map[int64]map[string]curator.Entity),
	})
}

func requestFrom(ctx context.Context) *request {
	req, _ := ctx.Value(requestCtxKey{}).(*request)
	return req
}

func (q *request) cachedSubject() (*curator.Subject, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.subject, q.subjectSet
}

func (q *request) storeSubject(sub *curator.Subject) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subject, q.subjectSet = sub, true
}

func (q *request) instance(resolverID int64, id string) (curator.Entity, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.lookup[resolverID][id]
	return e, ok
}

func (q *request) storeInstance(resolverID int64, e curator.Entity) {
	q.mu.Lock()
	defer q.mu.Unlock()
	byID, ok := q.lookup[resolverID]
	if !ok {
		byID = make(map[string]curator.Entity)
		q.lookup[resolverID] = byID
	}
	byID[e.ID()] = e
}

func (q *request) dropInstance(resolverID int64, id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.lookup[resolverID], id)
}

// ResolveInstanceUsingContext returns the entity memoized for the
// lifetime of the request, fetching it once on first use. Without a
// request cache on the context it degrades to a plain fetch.
func (r *Resolver) ResolveInstanceUsingContext(ctx context.Context, id string) (curator.Entity, error) {
	req := requestFrom(ctx)
	if req != nil {
		if e, ok := req.instance(r.id, id); ok {
			return e, nil
		}
	}
	e, err := r.store.Get(ctx, r.table(), id, nil, nil)
	if err != nil {
		return nil, err
	}
	if req != nil {
		req.storeInstance(r.id, e)
	}
	return e, nil
}

// rememberInstance refreshes the request cache after a mutation.
func (r *Resolver) rememberInstance(ctx context.Context, e curator.Entity) {
	if req := requestFrom(ctx); req != nil {
		req.storeInstance(r.id, e)
	}
}
