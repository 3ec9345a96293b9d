package present

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/display"
	"github.com/pixil98/go-authority/internal/protocol"
)

// Console writes a participant's control messages to its terminal. It is a
// gate listener and a notice handler, and is safe to write to from the
// session loop at the same time.
type Console struct {
	w        io.Writer
	renderer *Renderer

	mu sync.Mutex
}

func NewConsole(w io.Writer, r *Renderer) *Console {
	return &Console{w: w, renderer: r}
}

func (c *Console) ControlGained(ctx context.Context, t authority.Transition) {
	c.render(ctx, EventGained, Data{
		Entity:       t.Entity.String(),
		Name:         display.EntityName(t.Entity.String()),
		Kind:         t.Kind,
		AwaitConfirm: t.AwaitConfirm,
	})
}

func (c *Console) ControlLost(ctx context.Context, t authority.Transition) {
	c.render(ctx, EventLost, Data{
		Entity: t.Entity.String(),
		Name:   display.EntityName(t.Entity.String()),
		Kind:   t.Kind,
	})
}

func (c *Console) AvailabilityChanged(ctx context.Context, entity authority.EntityID, free bool) {
	c.render(ctx, EventAvailable, Data{
		Entity: entity.String(),
		Name:   display.EntityName(entity.String()),
		Free:   free,
	})
}

// Notice renders a failure notice from the authority.
func (c *Console) Notice(ctx context.Context, n protocol.Notice) {
	c.render(ctx, EventFailed, Data{
		Entity: n.Entity.String(),
		Name:   display.EntityName(n.Entity.String()),
		Reason: n.Reason,
	})
}

// Println writes a wrapped line.
func (c *Console) Println(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.w, "%s\n", display.Wrap(text))
	return err
}

// Printf writes formatted text without a line ending.
func (c *Console) Printf(format string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.w, format, args...)
	return err
}

func (c *Console) render(ctx context.Context, ev Event, data Data) {
	text, err := c.renderer.Render(ev, data)
	if err != nil {
		slog.WarnContext(ctx, "rendering message", "event", ev, "error", err)
		return
	}
	if err := c.Println(text); err != nil {
		slog.DebugContext(ctx, "writing message", "event", ev, "error", err)
	}
}
