package present

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/protocol"
	"github.com/pixil98/go-testutil"
)

func TestRenderer_Render(t *testing.T) {
	tests := map[string]struct {
		event Event
		data  Data
		exp   string
	}{
		"mount gained": {
			event: EventGained,
			data:  Data{Name: "Horse 1", Kind: "mount"},
			exp:   "You mount Horse 1.",
		},
		"pickup gained awaiting confirmation": {
			event: EventGained,
			data:  Data{Name: "Apple 1", Kind: "pickup", AwaitConfirm: true},
			exp:   "You pick up Apple 1. Confirm to keep it.",
		},
		"capture gained": {
			event: EventGained,
			data:  Data{Name: "Flag 1", Kind: "capture"},
			exp:   "You capture Flag 1.",
		},
		"mount lost": {
			event: EventLost,
			data:  Data{Name: "Horse 1", Kind: "mount"},
			exp:   "You dismount Horse 1.",
		},
		"pickup lost": {
			event: EventLost,
			data:  Data{Name: "Apple 1", Kind: "pickup"},
			exp:   "You no longer hold Apple 1.",
		},
		"free": {
			event: EventAvailable,
			data:  Data{Name: "Horse 1", Free: true},
			exp:   "Horse 1 is free.",
		},
		"taken": {
			event: EventAvailable,
			data:  Data{Name: "Horse 1"},
			exp:   "Horse 1 is taken.",
		},
		"failed": {
			event: EventFailed,
			data:  Data{Name: "Apple 1", Reason: "Confirmation Timeout"},
			exp:   "You lose Apple 1: confirmation timeout.",
		},
	}

	r, err := NewRenderer(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := r.Render(tt.event, tt.data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "text", got, tt.exp)
		})
	}
}

func TestNewRenderer_Override(t *testing.T) {
	r, err := NewRenderer(map[Event]string{EventGained: `{{ .Name | upper }}!`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := r.Render(EventGained, Data{Name: "horse"})
	testutil.AssertEqual(t, "text", got, "HORSE!")
}

func TestNewRenderer_BadTemplate(t *testing.T) {
	_, err := NewRenderer(map[Event]string{EventLost: `{{ .Name `})
	testutil.AssertErrorContains(t, err, "parsing lost template")
}

func TestConsole(t *testing.T) {
	ctx := context.Background()
	r, err := NewRenderer(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var buf bytes.Buffer
	c := NewConsole(&buf, r)

	c.ControlGained(ctx, authority.Transition{Entity: "horse-1", Next: "alice", Kind: "mount"})
	c.AvailabilityChanged(ctx, "apple-2", true)
	c.Notice(ctx, protocol.Notice{Entity: "apple-1", Reason: errors.New("confirmation timeout").Error()})

	exp := "You mount Horse 1.\nApple 2 is free.\nYou lose Apple 1: confirmation timeout.\n"
	testutil.AssertEqual(t, "output", buf.String(), exp)
}

func TestIndicators(t *testing.T) {
	ctx := context.Background()
	i := NewIndicators()

	i.OnControlChanged(ctx, "horse-1", true)
	testutil.AssertEqual(t, "controlled", i.Controlled("horse-1"), true)

	i.OnControlChanged(ctx, "horse-1", false)
	testutil.AssertEqual(t, "released", i.Controlled("horse-1"), false)
}
