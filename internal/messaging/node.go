package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixil98/go-authority/internal/claim"
	"github.com/pixil98/go-authority/internal/protocol"
	"github.com/pixil98/go-authority/internal/world"
)

// AuthorityNode serves claim, presence and snapshot requests for the
// coordinator over the bus.
type AuthorityNode struct {
	bus   Bus
	coord *claim.Coordinator
	ready chan struct{}
}

func NewAuthorityNode(bus Bus, coord *claim.Coordinator) *AuthorityNode {
	return &AuthorityNode{
		bus:   bus,
		coord: coord,
		ready: make(chan struct{}),
	}
}

// Ready is closed once the node is serving requests.
func (n *AuthorityNode) Ready() <-chan struct{} {
	return n.ready
}

func (n *AuthorityNode) Start(ctx context.Context) error {
	select {
	case <-n.bus.Ready():
	case <-ctx.Done():
		return nil
	}

	handlers := map[string]func([]byte) []byte{
		protocol.SubjectRequest:  func(data []byte) []byte { return n.handleRequest(ctx, data) },
		protocol.SubjectPresence: func(data []byte) []byte { return n.handlePresence(ctx, data) },
		protocol.SubjectSnapshot: func([]byte) []byte { return n.handleSnapshot(ctx) },
	}

	var unsubs []func()
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()
	for subject, h := range handlers {
		unsub, err := n.bus.Respond(subject, h)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		unsubs = append(unsubs, unsub)
	}
	if err := n.bus.Flush(); err != nil {
		return fmt.Errorf("flushing subscriptions: %w", err)
	}

	close(n.ready)
	slog.InfoContext(ctx, "authority node serving")

	<-ctx.Done()
	return nil
}

func (n *AuthorityNode) handleRequest(ctx context.Context, data []byte) []byte {
	req, err := protocol.Decode[protocol.Request](data)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		slog.WarnContext(ctx, "invalid request", "error", err)
		return n.reply(ctx, protocol.Reply{Outcome: string(claim.OutcomeUnknown), Error: err.Error()})
	}

	var outcome claim.Outcome
	switch req.Intent {
	case protocol.IntentClaim:
		outcome = n.coord.Claim(ctx, req.Entity, req.Actor)
	case protocol.IntentRelease:
		outcome = n.coord.Release(ctx, req.Entity, req.Actor)
	case protocol.IntentInteract:
		outcome = n.coord.Interact(ctx, req.Entity, req.Actor)
	case protocol.IntentConfirm:
		outcome = n.coord.Confirm(ctx, req.Entity, req.Actor)
	}

	return n.reply(ctx, protocol.Reply{Outcome: string(outcome)})
}

func (n *AuthorityNode) handlePresence(ctx context.Context, data []byte) []byte {
	p, err := protocol.Decode[protocol.Presence](data)
	if err != nil {
		slog.WarnContext(ctx, "invalid presence", "error", err)
		return n.reply(ctx, protocol.Reply{Error: err.Error()})
	}

	switch p.Event {
	case protocol.PresenceConnect:
		err = n.coord.Connect(ctx, &world.Actor{ID: p.Actor, Name: p.Name, ConnectedAt: time.Now()})
	case protocol.PresenceDisconnect:
		err = n.coord.Disconnect(ctx, p.Actor)
	case protocol.PresenceDeath:
		err = n.coord.Died(ctx, p.Actor)
	default:
		err = fmt.Errorf("unknown presence event %q", p.Event)
	}
	if err != nil {
		slog.WarnContext(ctx, "handling presence", "actor", p.Actor, "event", p.Event, "error", err)
		return n.reply(ctx, protocol.Reply{Error: err.Error()})
	}
	return n.reply(ctx, protocol.Reply{Outcome: string(claim.OutcomeCommitted)})
}

func (n *AuthorityNode) handleSnapshot(ctx context.Context) []byte {
	data, err := protocol.Encode(protocol.NewSnapshot(n.coord.Snapshot()))
	if err != nil {
		slog.ErrorContext(ctx, "encoding snapshot", "error", err)
		return nil
	}
	return data
}

func (n *AuthorityNode) reply(ctx context.Context, r protocol.Reply) []byte {
	data, err := protocol.Encode(r)
	if err != nil {
		slog.ErrorContext(ctx, "encoding reply", "error", err)
		return nil
	}
	return data
}
