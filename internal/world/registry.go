package world

import (
	"sort"
	"sync"
	"time"

	"github.com/pixil98/go-authority/internal/authority"
)

// Kind is the category of an ownable entity.
type Kind string

const (
	KindMount   Kind = "mount"
	KindPickup  Kind = "pickup"
	KindCapture Kind = "capture"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMount, KindPickup, KindCapture:
		return true
	default:
		return false
	}
}

// Steers reports whether an owner drives the entity with their own input
// rather than moving themselves.
func (k Kind) Steers() bool {
	return k == KindMount
}

// RequiresConfirmation reports whether a claim on this kind must be
// confirmed by the new owner before it is final.
func (k Kind) RequiresConfirmation() bool {
	return k == KindPickup || k == KindCapture
}

// Entity is the handle for a spawned, ownable entity.
type Entity struct {
	ID           authority.EntityID
	DefinitionId string
	Name         string
	Kind         Kind

	// Locked entities refuse every claim.
	Locked bool

	// ClaimableWhileOwned is the co-op display policy for the entity.
	ClaimableWhileOwned bool

	// ConfirmTimeout overrides the coordinator's confirmation window when set.
	ConfirmTimeout time.Duration

	SpawnedAt time.Time
}

// Policy returns the store policy for the entity.
func (e *Entity) Policy() authority.Policy {
	return authority.Policy{
		Kind:                string(e.Kind),
		Steers:              e.Kind.Steers(),
		Claimable:           !e.Locked,
		ClaimableWhileOwned: e.ClaimableWhileOwned,
	}
}

// Actor is the handle for a connected participant.
type Actor struct {
	ID          authority.ActorID
	Name        string
	ConnectedAt time.Time
}

// Registry maps ids to live entity and actor handles.
// All access must go through its methods to ensure thread-safety.
type Registry struct {
	mu       sync.RWMutex
	entities map[authority.EntityID]*Entity
	actors   map[authority.ActorID]*Actor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[authority.EntityID]*Entity),
		actors:   make(map[authority.ActorID]*Actor),
	}
}

// AddActor registers a connected actor.
func (r *Registry) AddActor(a *Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actors[a.ID]; exists {
		return ErrActorExists
	}
	r.actors[a.ID] = a
	return nil
}

// RemoveActor drops an actor and returns its handle.
func (r *Registry) RemoveActor(id authority.ActorID) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, exists := r.actors[id]
	if !exists {
		return nil, ErrActorNotFound
	}
	delete(r.actors, id)
	return a, nil
}

// Actor looks up an actor by id.
func (r *Registry) Actor(id authority.ActorID) (*Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.actors[id]
	return a, ok
}

// AddEntity registers a spawned entity.
func (r *Registry) AddEntity(e *Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[e.ID]; exists {
		return ErrEntityExists
	}
	r.entities[e.ID] = e
	return nil
}

// RemoveEntity drops an entity and returns its handle.
func (r *Registry) RemoveEntity(id authority.EntityID) (*Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entities[id]
	if !exists {
		return nil, ErrEntityNotFound
	}
	delete(r.entities, id)
	return e, nil
}

// Entity looks up an entity by id.
func (r *Registry) Entity(id authority.EntityID) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[id]
	return e, ok
}

// Entities returns all entity handles in id order.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ForEachActor calls fn for each actor while holding the read lock.
func (r *Registry) ForEachActor(fn func(*Actor)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.actors {
		fn(a)
	}
}
