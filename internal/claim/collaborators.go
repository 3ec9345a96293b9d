package claim

import (
	"context"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-errors"
)

// Spatial reparents an entity under its owner, or back to the world when
// parent is authority.NoActor.
type Spatial interface {
	Reparent(ctx context.Context, entity authority.EntityID, parent authority.ActorID) error
}

// InputRouter binds an actor's input stream to an entity.
type InputRouter interface {
	Bind(ctx context.Context, actor authority.ActorID, entity authority.EntityID) error
	Unbind(ctx context.Context, actor authority.ActorID, entity authority.EntityID) error
}

// Presenter is told when an entity becomes controlled or free. It is
// cosmetic and never feeds back into ownership.
type Presenter interface {
	OnControlChanged(ctx context.Context, entity authority.EntityID, controlled bool)
}

// Broadcaster fans committed transitions out to every participant.
type Broadcaster interface {
	Broadcast(ctx context.Context, t authority.Transition) error
}

// Broadcasters sends each transition to every member in order. A failing
// member does not stop the rest.
type Broadcasters []Broadcaster

func (bs Broadcasters) Broadcast(ctx context.Context, t authority.Transition) error {
	el := errors.NewErrorList()
	for _, b := range bs {
		el.Add(b.Broadcast(ctx, t))
	}
	return el.Err()
}

// Notifier tells a single actor that an acquisition failed.
type Notifier interface {
	ClaimFailed(ctx context.Context, actor authority.ActorID, entity authority.EntityID, reason error) error
}

type nopSpatial struct{}

func (nopSpatial) Reparent(context.Context, authority.EntityID, authority.ActorID) error { return nil }

type nopInput struct{}

func (nopInput) Bind(context.Context, authority.ActorID, authority.EntityID) error   { return nil }
func (nopInput) Unbind(context.Context, authority.ActorID, authority.EntityID) error { return nil }

type nopPresenter struct{}

func (nopPresenter) OnControlChanged(context.Context, authority.EntityID, bool) {}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(context.Context, authority.Transition) error { return nil }

type nopNotifier struct{}

func (nopNotifier) ClaimFailed(context.Context, authority.ActorID, authority.EntityID, error) error {
	return nil
}
