package input

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/pixil98/go-authority/internal/authority"
)

// Router routes an actor's input to the entities it controls.
type Router struct {
	bound map[authority.ActorID]map[authority.EntityID]struct{}

	mu sync.RWMutex
}

func NewRouter() *Router {
	return &Router{
		bound: map[authority.ActorID]map[authority.EntityID]struct{}{},
	}
}

func (r *Router) Bind(_ context.Context, actor authority.ActorID, entity authority.EntityID) error {
	if actor == authority.NoActor {
		return fmt.Errorf("binding %s: no actor", entity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.bound[actor]
	if !ok {
		set = map[authority.EntityID]struct{}{}
		r.bound[actor] = set
	}
	set[entity] = struct{}{}
	return nil
}

// Unbind is a no-op for bindings that do not exist.
func (r *Router) Unbind(_ context.Context, actor authority.ActorID, entity authority.EntityID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.bound[actor]
	if !ok {
		return nil
	}
	delete(set, entity)
	if len(set) == 0 {
		delete(r.bound, actor)
	}
	return nil
}

// Bound returns the entities receiving actor's input, sorted.
func (r *Router) Bound(actor authority.ActorID) []authority.EntityID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]authority.EntityID, 0, len(r.bound[actor]))
	for e := range r.bound[actor] {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// Routes reports whether actor's input reaches entity.
func (r *Router) Routes(actor authority.ActorID, entity authority.EntityID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.bound[actor][entity]
	return ok
}
