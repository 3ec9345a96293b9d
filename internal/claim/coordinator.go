package claim

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/world"
)

const (
	DefaultConfirmTimeout = 3 * time.Second
)

type confirmation struct {
	actor    authority.ActorID
	deadline time.Time
}

// Coordinator turns interact, claim, release and confirm requests into
// ownership transitions on the authoritative node. Every request is handled
// under one lock so the store's check-and-set, the side effects and the
// broadcast happen in commit order.
type Coordinator struct {
	mu       sync.Mutex
	store    *authority.Store
	registry *world.Registry

	spatial     Spatial
	input       InputRouter
	presenter   Presenter
	broadcaster Broadcaster
	notifier    Notifier

	confirmTimeout time.Duration
	kindTimeouts   map[world.Kind]time.Duration
	now            func() time.Time

	// pending holds claims waiting for the new owner to confirm.
	pending map[authority.EntityID]confirmation
}

func NewCoordinator(store *authority.Store, registry *world.Registry, opts ...CoordinatorOpt) *Coordinator {
	c := &Coordinator{
		store:          store,
		registry:       registry,
		spatial:        nopSpatial{},
		input:          nopInput{},
		presenter:      nopPresenter{},
		broadcaster:    nopBroadcaster{},
		notifier:       nopNotifier{},
		confirmTimeout: DefaultConfirmTimeout,
		kindTimeouts:   make(map[world.Kind]time.Duration),
		now:            time.Now,
		pending:        make(map[authority.EntityID]confirmation),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Attach registers a spawned entity. It starts unowned.
func (c *Coordinator) Attach(ctx context.Context, e *world.Entity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.AddEntity(e); err != nil {
		return fmt.Errorf("attaching entity %s: %w", e.ID, err)
	}
	if err := c.store.Register(e.ID, e.Policy()); err != nil {
		_, _ = c.registry.RemoveEntity(e.ID)
		return fmt.Errorf("attaching entity %s: %w", e.ID, err)
	}

	slog.DebugContext(ctx, "entity attached", "entity", e.ID, "kind", e.Kind)
	return nil
}

// Detach removes a despawning entity, force-releasing it if owned.
func (c *Coordinator) Detach(ctx context.Context, id authority.EntityID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.registry.RemoveEntity(id); err != nil {
		return fmt.Errorf("detaching entity %s: %w", id, err)
	}
	delete(c.pending, id)

	t, ok := c.store.Unregister(id)
	if !ok {
		return fmt.Errorf("detaching entity %s: %w", id, world.ErrEntityNotFound)
	}
	if t.Prev != authority.NoActor {
		slog.InfoContext(ctx, "forced release on despawn", "entity", id, "actor", t.Prev)
	}
	c.commit(ctx, t)
	return nil
}

// Connect registers an actor so it may claim entities.
func (c *Coordinator) Connect(ctx context.Context, a *world.Actor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.AddActor(a); err != nil {
		return fmt.Errorf("connecting actor %s: %w", a.ID, err)
	}
	slog.InfoContext(ctx, "actor connected", "actor", a.ID, "name", a.Name)
	return nil
}

// Disconnect force-releases everything the actor owns and forgets the actor.
func (c *Coordinator) Disconnect(ctx context.Context, actor authority.ActorID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseAll(ctx, actor, "disconnect")

	if _, err := c.registry.RemoveActor(actor); err != nil {
		return fmt.Errorf("disconnecting actor %s: %w", actor, err)
	}
	slog.InfoContext(ctx, "actor disconnected", "actor", actor)
	return nil
}

// Died force-releases everything the actor owns. The actor stays connected.
func (c *Coordinator) Died(ctx context.Context, actor authority.ActorID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.registry.Actor(actor); !ok {
		return fmt.Errorf("actor %s: %w", actor, world.ErrActorNotFound)
	}
	c.releaseAll(ctx, actor, "death")
	return nil
}

// Interact toggles ownership: an unowned entity is claimed, an entity the
// actor owns is released, and an entity owned by anyone else is left alone.
func (c *Coordinator) Interact(ctx context.Context, id authority.EntityID, actor authority.ActorID) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.store.Get(id)
	if !ok {
		return OutcomeUnknown
	}
	if rec.Owner != authority.NoActor && rec.Owner == actor {
		return c.release(ctx, id, actor)
	}
	return c.claim(ctx, id, actor)
}

// Claim asks for ownership of the entity.
func (c *Coordinator) Claim(ctx context.Context, id authority.EntityID, actor authority.ActorID) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.claim(ctx, id, actor)
}

// Release gives up ownership of the entity.
func (c *Coordinator) Release(ctx context.Context, id authority.EntityID, actor authority.ActorID) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.release(ctx, id, actor)
}

// Confirm finalises a claim that is waiting for its owner's confirmation.
func (c *Coordinator) Confirm(ctx context.Context, id authority.EntityID, actor authority.ActorID) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[id]
	if !ok {
		rec, found := c.store.Get(id)
		switch {
		case !found:
			return OutcomeUnknown
		case rec.Owner == actor && actor != authority.NoActor:
			return OutcomeUnchanged
		default:
			return OutcomeStale
		}
	}
	if p.actor != actor {
		return OutcomeStale
	}

	delete(c.pending, id)
	slog.DebugContext(ctx, "claim confirmed", "entity", id, "actor", actor)
	return OutcomeCommitted
}

// Pending reports whether a claim on the entity is waiting for confirmation.
func (c *Coordinator) Pending(id authority.EntityID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.pending[id]
	return ok
}

// Snapshot returns the authoritative record of every attached entity.
func (c *Coordinator) Snapshot() []authority.Record {
	ids := c.store.Entities()
	out := make([]authority.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := c.store.Get(id); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Tick reverts claims whose confirmation window has closed.
func (c *Coordinator) Tick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expired []authority.EntityID
	for id, p := range c.pending {
		if !now.Before(p.deadline) {
			expired = append(expired, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })

	for _, id := range expired {
		p := c.pending[id]
		delete(c.pending, id)

		t, ok := c.store.ForceRelease(id)
		if !ok {
			continue
		}
		slog.InfoContext(ctx, "claim not confirmed, reverting", "entity", id, "actor", p.actor)
		c.commit(ctx, t)

		if err := c.notifier.ClaimFailed(ctx, p.actor, id, ErrConfirmationTimeout); err != nil {
			slog.WarnContext(ctx, "notifying failed claim", "entity", id, "actor", p.actor, "error", err)
		}
	}

	return nil
}

// claim must be called with c.mu held.
func (c *Coordinator) claim(ctx context.Context, id authority.EntityID, actor authority.ActorID) Outcome {
	if _, ok := c.registry.Actor(actor); !ok {
		slog.DebugContext(ctx, "claim from unknown actor ignored", "entity", id, "actor", actor)
		return OutcomeRejected
	}

	if e, ok := c.registry.Entity(id); ok && e.Kind.Steers() {
		if steered, ok := c.steering(actor); ok && steered != id {
			slog.DebugContext(ctx, "claim refused, already steering", "entity", id, "actor", actor, "steering", steered)
			return OutcomeRejected
		}
	}

	t, res := c.store.TryClaim(id, actor)
	if res != authority.Committed {
		slog.DebugContext(ctx, "claim not committed", "entity", id, "actor", actor, "result", res)
		return outcomeOf(res)
	}

	if e, ok := c.registry.Entity(id); ok && e.Kind.RequiresConfirmation() {
		c.pending[id] = confirmation{
			actor:    actor,
			deadline: c.now().Add(c.timeoutFor(e)),
		}
		t.AwaitConfirm = true
	}

	c.commit(ctx, t)
	return OutcomeCommitted
}

// steering returns the entity actor currently steers. An actor steers at
// most one entity. Must be called with c.mu held.
func (c *Coordinator) steering(actor authority.ActorID) (authority.EntityID, bool) {
	for _, id := range c.store.OwnedBy(actor) {
		if rec, ok := c.store.Get(id); ok && rec.Policy.Steers {
			return id, true
		}
	}
	return "", false
}

// release must be called with c.mu held.
func (c *Coordinator) release(ctx context.Context, id authority.EntityID, actor authority.ActorID) Outcome {
	t, res := c.store.Release(id, actor)
	if res != authority.Committed {
		slog.DebugContext(ctx, "release not committed", "entity", id, "actor", actor, "result", res)
		return outcomeOf(res)
	}

	delete(c.pending, id)
	c.commit(ctx, t)
	return OutcomeCommitted
}

// releaseAll must be called with c.mu held.
func (c *Coordinator) releaseAll(ctx context.Context, actor authority.ActorID, reason string) {
	for _, id := range c.store.OwnedBy(actor) {
		delete(c.pending, id)
		t, ok := c.store.ForceRelease(id)
		if !ok {
			continue
		}
		slog.InfoContext(ctx, "forced release", "entity", id, "actor", actor, "reason", reason)
		c.commit(ctx, t)
	}
}

func (c *Coordinator) timeoutFor(e *world.Entity) time.Duration {
	if e.ConfirmTimeout > 0 {
		return e.ConfirmTimeout
	}
	if d, ok := c.kindTimeouts[e.Kind]; ok {
		return d
	}
	return c.confirmTimeout
}

// commit applies the side effects of a transition and publishes it. Side
// effect failures are logged and never undo the transition.
func (c *Coordinator) commit(ctx context.Context, t authority.Transition) {
	if t.Prev != authority.NoActor {
		if err := c.input.Unbind(ctx, t.Prev, t.Entity); err != nil {
			slog.WarnContext(ctx, "unbinding input", "entity", t.Entity, "actor", t.Prev, "error", err)
		}
	}

	if err := c.spatial.Reparent(ctx, t.Entity, t.Next); err != nil {
		slog.WarnContext(ctx, "reparenting entity", "entity", t.Entity, "parent", t.Next, "error", err)
	}

	if t.Next != authority.NoActor {
		if err := c.input.Bind(ctx, t.Next, t.Entity); err != nil {
			slog.WarnContext(ctx, "binding input", "entity", t.Entity, "actor", t.Next, "error", err)
		}
	}

	c.presenter.OnControlChanged(ctx, t.Entity, t.Next != authority.NoActor)
	c.publish(ctx, t)
}

func (c *Coordinator) publish(ctx context.Context, t authority.Transition) {
	if err := c.broadcaster.Broadcast(ctx, t); err != nil {
		slog.ErrorContext(ctx, "broadcasting transition", "entity", t.Entity, "seq", t.Seq, "error", err)
	}
}
