package spatial

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/world"
)

// ActorLookup resolves actors that entities can be attached to.
type ActorLookup interface {
	Actor(id authority.ActorID) (*world.Actor, bool)
}

// Scene tracks which actor each entity is attached to. Entities with no
// parent sit at the world root.
type Scene struct {
	actors  ActorLookup
	parents map[authority.EntityID]authority.ActorID

	mu sync.RWMutex
}

func NewScene(actors ActorLookup) *Scene {
	return &Scene{
		actors:  actors,
		parents: map[authority.EntityID]authority.ActorID{},
	}
}

// Reparent attaches entity to parent, or to the world root when parent is
// NoActor. Attaching to an actor that is not present fails.
func (s *Scene) Reparent(_ context.Context, entity authority.EntityID, parent authority.ActorID) error {
	if parent != authority.NoActor {
		if _, ok := s.actors.Actor(parent); !ok {
			return fmt.Errorf("reparenting %s: %w", entity, world.ErrActorNotFound)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if parent == authority.NoActor {
		delete(s.parents, entity)
		return nil
	}
	s.parents[entity] = parent
	return nil
}

// Parent returns the actor entity is attached to, or NoActor.
func (s *Scene) Parent(entity authority.EntityID) authority.ActorID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.parents[entity]; ok {
		return p
	}
	return authority.NoActor
}

// Children returns the entities attached to actor, sorted.
func (s *Scene) Children(actor authority.ActorID) []authority.EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []authority.EntityID
	for e, p := range s.parents {
		if p == actor {
			out = append(out, e)
		}
	}
	slices.Sort(out)
	return out
}
