package messaging

import (
	"context"
	"fmt"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/protocol"
)

// Bus is the subset of NatsServer the authority node and participants use.
type Bus interface {
	Ready() <-chan struct{}
	Subscribe(subject string, handler func(data []byte)) (func(), error)
	Respond(subject string, handler func(data []byte) []byte) (func(), error)
	Publish(subject string, data []byte) error
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	Flush() error
}

// Publisher publishes committed transitions to every participant and
// failure notices to individual actors.
type Publisher struct {
	bus Bus
}

// NewPublisher wraps a Bus for transition fan-out.
func NewPublisher(bus Bus) *Publisher {
	return &Publisher{bus: bus}
}

// Broadcast satisfies claim.Broadcaster.
func (p *Publisher) Broadcast(_ context.Context, t authority.Transition) error {
	data, err := protocol.Encode(t)
	if err != nil {
		return err
	}
	if err := p.bus.Publish(protocol.SubjectTransitions, data); err != nil {
		return fmt.Errorf("publishing transition: %w", err)
	}
	return nil
}

// ClaimFailed satisfies claim.Notifier.
func (p *Publisher) ClaimFailed(_ context.Context, actor authority.ActorID, entity authority.EntityID, reason error) error {
	data, err := protocol.Encode(protocol.Notice{Entity: entity, Reason: reason.Error()})
	if err != nil {
		return err
	}
	if err := p.bus.Publish(protocol.ActorSubject(actor), data); err != nil {
		return fmt.Errorf("publishing notice to %s: %w", actor, err)
	}
	return nil
}
