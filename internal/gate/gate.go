package gate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pixil98/go-authority/internal/authority"
)

const (
	DefaultPendingTTL = 5 * time.Second
)

// Change describes what a transition meant for the local actor.
type Change int

const (
	// NoChange means the transition did not name the local actor.
	NoChange Change = iota
	// Gained means the local actor now controls the entity.
	Gained
	// Lost means the local actor no longer controls the entity.
	Lost
	// Ignored means the transition was older than one already applied.
	Ignored
)

// Listener receives the local effects of transitions. Implementations are
// cosmetic; the gate's own flags are the capability record.
type Listener interface {
	ControlGained(ctx context.Context, t authority.Transition)
	ControlLost(ctx context.Context, t authority.Transition)
	AvailabilityChanged(ctx context.Context, entity authority.EntityID, free bool)
}

type GateOpt func(*Gate)

// WithListener sets the listener for local effects.
func WithListener(l Listener) GateOpt {
	return func(g *Gate) {
		g.listener = l
	}
}

// WithPendingTTL sets how long an unanswered request suppresses repeats.
func WithPendingTTL(d time.Duration) GateOpt {
	return func(g *Gate) {
		g.pendingTTL = d
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) GateOpt {
	return func(g *Gate) {
		g.now = now
	}
}

// Gate holds one actor's local capabilities. They are derived only from
// the transitions it is given, never from reading ownership state.
type Gate struct {
	mu    sync.Mutex
	actor authority.ActorID

	// controlled maps entities the actor controls to whether they steer.
	controlled map[authority.EntityID]bool
	free       map[authority.EntityID]bool
	seq        map[authority.EntityID]uint64
	pending    map[authority.EntityID]time.Time

	listener   Listener
	pendingTTL time.Duration
	now        func() time.Time
}

func NewGate(actor authority.ActorID, opts ...GateOpt) *Gate {
	g := &Gate{
		actor:      actor,
		controlled: make(map[authority.EntityID]bool),
		free:       make(map[authority.EntityID]bool),
		seq:        make(map[authority.EntityID]uint64),
		pending:    make(map[authority.EntityID]time.Time),
		pendingTTL: DefaultPendingTTL,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Actor returns the local actor this gate belongs to.
func (g *Gate) Actor() authority.ActorID {
	return g.actor
}

// OnTransition applies a broadcast transition.
func (g *Gate) OnTransition(ctx context.Context, t authority.Transition) Change {
	g.mu.Lock()
	if t.Seq <= g.seq[t.Entity] {
		g.mu.Unlock()
		return Ignored
	}
	g.seq[t.Entity] = t.Seq
	delete(g.pending, t.Entity)

	change := NoChange
	switch {
	case t.Next == g.actor && t.Next != authority.NoActor:
		g.controlled[t.Entity] = t.Steers
		change = Gained
	case t.Prev == g.actor && t.Prev != authority.NoActor:
		delete(g.controlled, t.Entity)
		change = Lost
	}

	free := t.Next == authority.NoActor && t.Claimable && !t.Removed
	freeChanged := g.free[t.Entity] != free
	if t.Removed {
		// The id may be attached again later; keep nothing about this one.
		delete(g.free, t.Entity)
		delete(g.seq, t.Entity)
		delete(g.controlled, t.Entity)
	} else {
		g.free[t.Entity] = free
	}
	listener := g.listener
	g.mu.Unlock()

	if listener == nil {
		return change
	}
	switch change {
	case Gained:
		listener.ControlGained(ctx, t)
	case Lost:
		listener.ControlLost(ctx, t)
	}
	if freeChanged || t.Removed {
		listener.AvailabilityChanged(ctx, t.Entity, free)
	}
	return change
}

// Begin marks a request for the entity as in flight. It returns false when
// one is already in flight, in which case the caller must not send another.
func (g *Gate) Begin(entity authority.EntityID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if at, ok := g.pending[entity]; ok && g.now().Sub(at) < g.pendingTTL {
		return false
	}
	g.pending[entity] = g.now()
	return true
}

// Settle clears the in-flight mark once the authority has answered.
func (g *Gate) Settle(entity authority.EntityID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.pending, entity)
}

// InFlight reports whether a request for the entity is awaiting an answer.
func (g *Gate) InFlight(entity authority.EntityID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.pending[entity]
	return ok
}

// Tick expires in-flight marks whose answer never arrived.
func (g *Gate) Tick(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for id, at := range g.pending {
		if now.Sub(at) >= g.pendingTTL {
			delete(g.pending, id)
		}
	}
	return nil
}

// Controls reports whether the local actor's input may drive the entity.
func (g *Gate) Controls(entity authority.EntityID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.controlled[entity]
	return ok
}

// Controlled returns every entity the local actor controls, in id order.
func (g *Gate) Controlled() []authority.EntityID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]authority.EntityID, 0, len(g.controlled))
	for id := range g.controlled {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CanMove reports whether the actor moves under its own input. It does not
// while it steers a mount.
func (g *Gate) CanMove() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, steers := range g.controlled {
		if steers {
			return false
		}
	}
	return true
}

// Free reports the cached availability of an entity for display.
func (g *Gate) Free(entity authority.EntityID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.free[entity]
}
