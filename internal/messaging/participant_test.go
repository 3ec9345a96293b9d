package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/claim"
	"github.com/pixil98/go-authority/internal/gate"
	"github.com/pixil98/go-authority/internal/protocol"
	"github.com/pixil98/go-authority/internal/world"
	"github.com/pixil98/go-testutil"
)

// recordingListener captures gate events from NATS callback goroutines.
type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) ControlGained(_ context.Context, t authority.Transition) {
	l.add(fmt.Sprintf("gained %s", t.Entity))
}

func (l *recordingListener) ControlLost(_ context.Context, t authority.Transition) {
	l.add(fmt.Sprintf("lost %s", t.Entity))
}

func (l *recordingListener) AvailabilityChanged(context.Context, authority.EntityID, bool) {}

func (l *recordingListener) add(ev string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *recordingListener) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type lockedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *lockedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *lockedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitClosed(t *testing.T, what string, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func startAuthority(t *testing.T, opts ...claim.CoordinatorOpt) (*NatsServer, *claim.Coordinator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	srv, err := NewNatsServer(WithPort(-1))
	if err != nil {
		cancel()
		t.Fatalf("creating server: %v", err)
	}
	done := make(chan error, 2)
	go func() { done <- srv.Start(ctx) }()
	waitClosed(t, "nats server", srv.Ready())

	pub := NewPublisher(srv)
	opts = append([]claim.CoordinatorOpt{claim.WithBroadcaster(pub), claim.WithNotifier(pub)}, opts...)
	coord := claim.NewCoordinator(authority.NewStore(), world.NewRegistry(), opts...)

	node := NewAuthorityNode(srv, coord)
	go func() { done <- node.Start(ctx) }()
	waitClosed(t, "authority node", node.Ready())

	t.Cleanup(func() {
		cancel()
		for i := 0; i < 2; i++ {
			select {
			case err := <-done:
				if err != nil {
					t.Errorf("worker exited with error: %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Errorf("worker did not stop")
			}
		}
	})

	for _, e := range []*world.Entity{
		{ID: "horse-1", Name: "horse", Kind: world.KindMount},
		{ID: "apple-1", Name: "apple", Kind: world.KindPickup},
	} {
		if err := coord.Attach(ctx, e); err != nil {
			t.Fatalf("attaching %s: %v", e.ID, err)
		}
	}

	return srv, coord
}

func join(t *testing.T, bus Bus, actor authority.ActorID, opts ...ParticipantOpt) (*Participant, *recordingListener) {
	t.Helper()
	l := &recordingListener{}
	p := NewParticipant(bus, string(actor), gate.NewGate(actor, gate.WithListener(l)), opts...)
	if err := p.Join(context.Background()); err != nil {
		t.Fatalf("joining %s: %v", actor, err)
	}
	return p, l
}

func ownerIs(p *Participant, entity authority.EntityID, exp authority.ActorID) func() bool {
	return func() bool {
		owner, ok := p.Mirror().Owner(entity)
		return ok && owner == exp
	}
}

func TestParticipant_EndToEnd(t *testing.T) {
	ctx := context.Background()
	srv, _ := startAuthority(t)
	alice, aliceEvents := join(t, srv, "alice")
	bob, bobEvents := join(t, srv, "bob")

	testutil.AssertEqual(t, "initial free", bob.Mirror().Free("horse-1"), true)

	out, err := alice.Send(ctx, protocol.IntentInteract, "horse-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "alice claims", out, claim.OutcomeCommitted)
	eventually(t, "bob to see alice", ownerIs(bob, "horse-1", "alice"))
	eventually(t, "alice in control", func() bool { return alice.Gate().Controls("horse-1") })
	testutil.AssertEqual(t, "alice can move", alice.Gate().CanMove(), false)

	out, err = bob.Send(ctx, protocol.IntentInteract, "horse-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "bob rejected", out, claim.OutcomeRejected)

	out, _ = alice.Send(ctx, protocol.IntentInteract, "horse-1")
	testutil.AssertEqual(t, "alice releases", out, claim.OutcomeCommitted)
	eventually(t, "bob to see release", ownerIs(bob, "horse-1", authority.NoActor))

	out, _ = bob.Send(ctx, protocol.IntentClaim, "horse-1")
	testutil.AssertEqual(t, "bob claims", out, claim.OutcomeCommitted)
	eventually(t, "alice to see bob", ownerIs(alice, "horse-1", "bob"))
	eventually(t, "bob in control", func() bool { return bob.Gate().Controls("horse-1") })

	testutil.AssertEqual(t, "alice events", fmt.Sprint(aliceEvents.snapshot()), "[gained horse-1 lost horse-1]")
	testutil.AssertEqual(t, "bob events", fmt.Sprint(bobEvents.snapshot()), "[gained horse-1]")
	testutil.AssertEqual(t, "alice can move again", alice.Gate().CanMove(), true)
}

func TestParticipant_LeaveReleases(t *testing.T) {
	ctx := context.Background()
	srv, _ := startAuthority(t)
	alice, _ := join(t, srv, "alice")
	bob, _ := join(t, srv, "bob")

	out, _ := alice.Send(ctx, protocol.IntentClaim, "horse-1")
	testutil.AssertEqual(t, "claim", out, claim.OutcomeCommitted)
	eventually(t, "bob to see alice", ownerIs(bob, "horse-1", "alice"))

	if err := alice.Leave(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eventually(t, "horse to be free", func() bool { return bob.Mirror().Free("horse-1") })

	out, _ = bob.Send(ctx, protocol.IntentClaim, "horse-1")
	testutil.AssertEqual(t, "bob claims", out, claim.OutcomeCommitted)
}

func TestParticipant_DieReleases(t *testing.T) {
	ctx := context.Background()
	srv, _ := startAuthority(t)
	alice, _ := join(t, srv, "alice")

	_, _ = alice.Send(ctx, protocol.IntentClaim, "horse-1")
	eventually(t, "alice in control", func() bool { return alice.Gate().Controls("horse-1") })

	if err := alice.Die(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eventually(t, "alice loses control", func() bool { return !alice.Gate().Controls("horse-1") })
}

func TestParticipant_AutoConfirm(t *testing.T) {
	ctx := context.Background()
	srv, coord := startAuthority(t)
	alice, _ := join(t, srv, "alice")

	out, _ := alice.Send(ctx, protocol.IntentClaim, "apple-1")
	testutil.AssertEqual(t, "claim", out, claim.OutcomeCommitted)

	eventually(t, "confirmation", func() bool { return !coord.Pending("apple-1") })
	owner, _ := alice.Mirror().Owner("apple-1")
	testutil.AssertEqual(t, "owner", owner, authority.ActorID("alice"))
}

func TestParticipant_ConfirmationTimeout(t *testing.T) {
	ctx := context.Background()
	clock := &lockedClock{now: time.Unix(0, 0)}
	srv, coord := startAuthority(t, claim.WithClock(clock.Now))

	var mu sync.Mutex
	var notices []protocol.Notice
	alice, _ := join(t, srv, "alice",
		WithAutoConfirm(false),
		WithNoticeHandler(func(_ context.Context, n protocol.Notice) {
			mu.Lock()
			defer mu.Unlock()
			notices = append(notices, n)
		}),
	)
	bob, _ := join(t, srv, "bob")

	out, _ := alice.Send(ctx, protocol.IntentClaim, "apple-1")
	testutil.AssertEqual(t, "claim", out, claim.OutcomeCommitted)
	eventually(t, "bob to see alice", ownerIs(bob, "apple-1", "alice"))

	clock.Advance(claim.DefaultConfirmTimeout)
	if err := coord.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eventually(t, "reversal", ownerIs(bob, "apple-1", authority.NoActor))
	eventually(t, "notice", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(notices) == 1
	})
	testutil.AssertEqual(t, "notice entity", notices[0].Entity, authority.EntityID("apple-1"))
	testutil.AssertEqual(t, "notice reason", notices[0].Reason, claim.ErrConfirmationTimeout.Error())
	eventually(t, "alice loses control", func() bool { return !alice.Gate().Controls("apple-1") })
}

func TestParticipant_InFlightSuppressed(t *testing.T) {
	srv, _ := startAuthority(t)
	alice, _ := join(t, srv, "alice")

	alice.Gate().Begin("horse-1")
	_, err := alice.Send(context.Background(), protocol.IntentClaim, "horse-1")
	if !errors.Is(err, ErrInFlight) {
		t.Errorf("expected ErrInFlight, got %v", err)
	}
}

func TestAuthorityNode_InvalidRequest(t *testing.T) {
	srv, _ := startAuthority(t)

	data, _ := protocol.Encode(protocol.Request{Entity: "horse-1", Actor: "alice", Intent: "steal"})
	resp, err := srv.Request(context.Background(), protocol.SubjectRequest, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply, err := protocol.Decode[protocol.Reply](resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "outcome", reply.Outcome, string(claim.OutcomeUnknown))
	testutil.AssertErrorContains(t, errors.New(reply.Error), "unknown intent")
}
