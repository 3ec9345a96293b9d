package spatial

import (
	"context"
	"errors"
	"testing"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/world"
	"github.com/pixil98/go-testutil"
)

func TestScene_Reparent(t *testing.T) {
	tests := map[string]struct {
		parent    authority.ActorID
		expParent authority.ActorID
		expErr    error
	}{
		"attach to present actor": {
			parent:    "alice",
			expParent: "alice",
		},
		"attach to world root": {
			parent:    authority.NoActor,
			expParent: authority.NoActor,
		},
		"attach to missing actor": {
			parent:    "ghost",
			expParent: authority.NoActor,
			expErr:    world.ErrActorNotFound,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			reg := world.NewRegistry()
			if err := reg.AddActor(&world.Actor{ID: "alice"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			s := NewScene(reg)

			err := s.Reparent(context.Background(), "horse-1", tt.parent)
			if !errors.Is(err, tt.expErr) {
				t.Fatalf("expected error %v, got %v", tt.expErr, err)
			}
			testutil.AssertEqual(t, "parent", s.Parent("horse-1"), tt.expParent)
		})
	}
}

func TestScene_Children(t *testing.T) {
	ctx := context.Background()
	reg := world.NewRegistry()
	_ = reg.AddActor(&world.Actor{ID: "alice"})
	_ = reg.AddActor(&world.Actor{ID: "bob"})
	s := NewScene(reg)

	_ = s.Reparent(ctx, "sword-1", "alice")
	_ = s.Reparent(ctx, "apple-1", "alice")
	_ = s.Reparent(ctx, "horse-1", "bob")
	_ = s.Reparent(ctx, "horse-1", authority.NoActor)

	testutil.AssertEqual(t, "alice children", len(s.Children("alice")), 2)
	testutil.AssertEqual(t, "first child", s.Children("alice")[0], authority.EntityID("apple-1"))
	testutil.AssertEqual(t, "bob children", len(s.Children("bob")), 0)
}
