package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/claim"
	"github.com/pixil98/go-authority/internal/gate"
	"github.com/pixil98/go-authority/internal/protocol"
	"github.com/pixil98/go-testutil"
)

// countingBus answers every request with a committed reply and counts
// confirmation requests.
type countingBus struct {
	mu       sync.Mutex
	confirms int
}

func (b *countingBus) Ready() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (b *countingBus) Subscribe(string, func([]byte)) (func(), error) {
	return func() {}, nil
}

func (b *countingBus) Respond(string, func([]byte) []byte) (func(), error) {
	return func() {}, nil
}

func (b *countingBus) Publish(string, []byte) error { return nil }

func (b *countingBus) Flush() error { return nil }

func (b *countingBus) Request(_ context.Context, subject string, data []byte) ([]byte, error) {
	if subject == protocol.SubjectSnapshot {
		return protocol.Encode(protocol.Snapshot{})
	}
	if subject == protocol.SubjectRequest {
		if req, err := protocol.Decode[protocol.Request](data); err == nil && req.Intent == protocol.IntentConfirm {
			b.mu.Lock()
			b.confirms++
			b.mu.Unlock()
		}
	}
	return protocol.Encode(protocol.Reply{Outcome: string(claim.OutcomeCommitted)})
}

func (b *countingBus) confirmCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.confirms
}

func TestParticipant_NoConfirmAfterLeave(t *testing.T) {
	tests := map[string]struct {
		leave       bool
		expConfirms int
	}{
		"confirms while joined": {
			expConfirms: 1,
		},
		"silent after leave": {
			leave: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			bus := &countingBus{}
			p := NewParticipant(bus, "alice", gate.NewGate("alice"))
			if err := p.Join(ctx); err != nil {
				t.Fatalf("joining: %v", err)
			}
			if tt.leave {
				if err := p.Leave(ctx); err != nil {
					t.Fatalf("leaving: %v", err)
				}
			}

			data, err := protocol.Encode(authority.Transition{Entity: "apple-1", Next: "alice", Seq: 1, AwaitConfirm: true})
			if err != nil {
				t.Fatalf("encoding: %v", err)
			}
			p.handleTransition(ctx, data)

			if tt.expConfirms > 0 {
				eventually(t, "confirmation", func() bool { return bus.confirmCount() == tt.expConfirms })
			} else {
				time.Sleep(20 * time.Millisecond)
			}
			p.wg.Wait()
			testutil.AssertEqual(t, "confirms", bus.confirmCount(), tt.expConfirms)
		})
	}
}
