package claim

import (
	"time"

	"github.com/pixil98/go-authority/internal/world"
)

type CoordinatorOpt func(*Coordinator)

// WithSpatial sets the spatial parenting collaborator.
func WithSpatial(s Spatial) CoordinatorOpt {
	return func(c *Coordinator) {
		c.spatial = s
	}
}

// WithInputRouter sets the input routing collaborator.
func WithInputRouter(r InputRouter) CoordinatorOpt {
	return func(c *Coordinator) {
		c.input = r
	}
}

// WithPresenter sets the presentation collaborator.
func WithPresenter(p Presenter) CoordinatorOpt {
	return func(c *Coordinator) {
		c.presenter = p
	}
}

// WithBroadcaster sets where committed transitions are published.
func WithBroadcaster(b Broadcaster) CoordinatorOpt {
	return func(c *Coordinator) {
		c.broadcaster = b
	}
}

// WithNotifier sets how failed acquisitions are reported to actors.
func WithNotifier(n Notifier) CoordinatorOpt {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

// WithConfirmTimeout sets the default confirmation window.
func WithConfirmTimeout(d time.Duration) CoordinatorOpt {
	return func(c *Coordinator) {
		c.confirmTimeout = d
	}
}

// WithKindConfirmTimeout overrides the confirmation window for one kind.
func WithKindConfirmTimeout(k world.Kind, d time.Duration) CoordinatorOpt {
	return func(c *Coordinator) {
		c.kindTimeouts[k] = d
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) CoordinatorOpt {
	return func(c *Coordinator) {
		c.now = now
	}
}
