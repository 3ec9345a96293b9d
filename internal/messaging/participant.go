package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/claim"
	"github.com/pixil98/go-authority/internal/gate"
	"github.com/pixil98/go-authority/internal/protocol"
)

const (
	DefaultRequestTimeout = 2 * time.Second
)

// ErrInFlight is returned when a request for the same entity is still
// waiting for the authority.
var ErrInFlight = errors.New("request already in flight")

// NoticeHandler receives notices the authority addresses to this actor.
type NoticeHandler func(ctx context.Context, n protocol.Notice)

type ParticipantOpt func(*Participant)

// WithRequestTimeout bounds how long a request waits for its reply.
func WithRequestTimeout(d time.Duration) ParticipantOpt {
	return func(p *Participant) {
		p.requestTimeout = d
	}
}

// WithNoticeHandler sets the handler for failure notices.
func WithNoticeHandler(h NoticeHandler) ParticipantOpt {
	return func(p *Participant) {
		p.onNotice = h
	}
}

// WithAutoConfirm controls whether claims awaiting confirmation are
// confirmed as soon as the gate has taken control. Defaults to true.
func WithAutoConfirm(enabled bool) ParticipantOpt {
	return func(p *Participant) {
		p.autoConfirm = enabled
	}
}

// Participant is one actor's view of the authority: it sends requests,
// mirrors ownership and feeds broadcast transitions into the actor's gate.
type Participant struct {
	bus    Bus
	actor  authority.ActorID
	name   string
	gate   *gate.Gate
	mirror *authority.Mirror

	requestTimeout time.Duration
	autoConfirm    bool
	onNotice       NoticeHandler

	mu     sync.Mutex
	unsubs []func()
	closed bool
	wg     sync.WaitGroup
}

func NewParticipant(bus Bus, name string, g *gate.Gate, opts ...ParticipantOpt) *Participant {
	p := &Participant{
		bus:            bus,
		actor:          g.Actor(),
		name:           name,
		gate:           g,
		mirror:         authority.NewMirror(),
		requestTimeout: DefaultRequestTimeout,
		autoConfirm:    true,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Actor returns the participant's actor id.
func (p *Participant) Actor() authority.ActorID {
	return p.actor
}

// Gate returns the participant's capability gate.
func (p *Participant) Gate() *gate.Gate {
	return p.gate
}

// Mirror returns the participant's read-only ownership replica.
func (p *Participant) Mirror() *authority.Mirror {
	return p.mirror
}

// Join subscribes to transitions and notices, then announces the actor.
func (p *Participant) Join(ctx context.Context) error {
	unsubT, err := p.bus.Subscribe(protocol.SubjectTransitions, func(data []byte) {
		p.handleTransition(ctx, data)
	})
	if err != nil {
		return fmt.Errorf("subscribing to transitions: %w", err)
	}
	unsubN, err := p.bus.Subscribe(protocol.ActorSubject(p.actor), func(data []byte) {
		p.handleNotice(ctx, data)
	})
	if err != nil {
		unsubT()
		return fmt.Errorf("subscribing to notices: %w", err)
	}

	p.mu.Lock()
	p.unsubs = append(p.unsubs, unsubT, unsubN)
	p.mu.Unlock()

	if err := p.bus.Flush(); err != nil {
		return fmt.Errorf("flushing subscriptions: %w", err)
	}

	if err := p.presence(ctx, protocol.PresenceConnect); err != nil {
		p.unsubscribe()
		return err
	}

	if _, err := p.Refresh(ctx); err != nil {
		slog.WarnContext(ctx, "initial snapshot", "actor", p.actor, "error", err)
	}
	return nil
}

// Leave announces the disconnect, which releases everything the actor owns,
// and stops listening.
func (p *Participant) Leave(ctx context.Context) error {
	err := p.presence(ctx, protocol.PresenceDisconnect)

	// Handlers already running may still try to start a confirmation.
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.unsubscribe()
	p.wg.Wait()
	return err
}

// Die announces the actor's death. It keeps listening.
func (p *Participant) Die(ctx context.Context) error {
	return p.presence(ctx, protocol.PresenceDeath)
}

// Send asks the authority to act on an entity. Repeats for an entity whose
// request is still in flight return ErrInFlight without being sent.
func (p *Participant) Send(ctx context.Context, intent protocol.Intent, entity authority.EntityID) (claim.Outcome, error) {
	if !p.gate.Begin(entity) {
		return "", ErrInFlight
	}
	defer p.gate.Settle(entity)

	var reply protocol.Reply
	err := p.request(ctx, protocol.SubjectRequest, protocol.Request{
		Entity: entity,
		Actor:  p.actor,
		Intent: intent,
	}, &reply)
	if err != nil {
		return "", err
	}
	if reply.Error != "" {
		return claim.Outcome(reply.Outcome), errors.New(reply.Error)
	}
	return claim.Outcome(reply.Outcome), nil
}

// Refresh fetches the authority's snapshot and seeds the mirror with it.
func (p *Participant) Refresh(ctx context.Context) (protocol.Snapshot, error) {
	var snap protocol.Snapshot
	if err := p.request(ctx, protocol.SubjectSnapshot, struct{}{}, &snap); err != nil {
		return protocol.Snapshot{}, err
	}
	for _, e := range snap.Entities {
		p.mirror.Seed(e.Record())
	}
	return snap, nil
}

func (p *Participant) presence(ctx context.Context, ev protocol.PresenceEvent) error {
	var reply protocol.Reply
	err := p.request(ctx, protocol.SubjectPresence, protocol.Presence{
		Actor: p.actor,
		Name:  p.name,
		Event: ev,
	}, &reply)
	if err != nil {
		return fmt.Errorf("announcing %s: %w", ev, err)
	}
	if reply.Error != "" {
		return fmt.Errorf("announcing %s: %s", ev, reply.Error)
	}
	return nil
}

func (p *Participant) request(ctx context.Context, subject string, msg any, out any) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	resp, err := p.bus.Request(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", subject, err)
	}

	switch v := out.(type) {
	case *protocol.Reply:
		*v, err = protocol.Decode[protocol.Reply](resp)
	case *protocol.Snapshot:
		*v, err = protocol.Decode[protocol.Snapshot](resp)
	default:
		err = fmt.Errorf("unsupported reply type %T", out)
	}
	return err
}

func (p *Participant) handleTransition(ctx context.Context, data []byte) {
	t, err := protocol.Decode[authority.Transition](data)
	if err != nil {
		slog.WarnContext(ctx, "invalid transition", "actor", p.actor, "error", err)
		return
	}

	if p.mirror.Apply(t) && t.Removed {
		p.mirror.Forget(t.Entity)
	}

	change := p.gate.OnTransition(ctx, t)
	if change == gate.Gained && t.AwaitConfirm && p.autoConfirm {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		p.wg.Add(1)
		p.mu.Unlock()

		// Replies arrive on another subscription; do not block this one.
		go func() {
			defer p.wg.Done()
			if _, err := p.Send(ctx, protocol.IntentConfirm, t.Entity); err != nil {
				slog.WarnContext(ctx, "confirming claim", "entity", t.Entity, "actor", p.actor, "error", err)
			}
		}()
	}
}

func (p *Participant) handleNotice(ctx context.Context, data []byte) {
	n, err := protocol.Decode[protocol.Notice](data)
	if err != nil {
		slog.WarnContext(ctx, "invalid notice", "actor", p.actor, "error", err)
		return
	}
	if p.onNotice != nil {
		p.onNotice(ctx, n)
	}
}

func (p *Participant) unsubscribe() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, unsub := range p.unsubs {
		unsub()
	}
	p.unsubs = nil
}
