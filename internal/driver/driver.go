package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixil98/go-errors"
)

const (
	DefaultTickLength = 100 * time.Millisecond
)

// Ticker is advanced once per driver tick. The coordinator expires
// confirmation windows in its Tick; sessions drop stale in-flight requests.
type Ticker interface {
	Tick(context.Context) error
}

// TickFunc adapts a function to Ticker.
type TickFunc func(context.Context) error

func (f TickFunc) Tick(ctx context.Context) error {
	return f(ctx)
}

// TickDriver is the only clock that moves authority deadlines forward. A
// deadline is never checked more than one tick length late.
type TickDriver struct {
	tickLength time.Duration
	tickers    []Ticker
	now        func() time.Time
}

func NewTickDriver(tickers []Ticker, opts ...TickDriverOpt) *TickDriver {
	d := &TickDriver{
		tickLength: DefaultTickLength,
		tickers:    tickers,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Start ticks until ctx ends. A failing ticker is logged and ticked again
// next time; one broken collaborator must not freeze every deadline.
func (d *TickDriver) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.tickLength)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			started := d.now()
			if err := d.Tick(ctx); err != nil {
				slog.WarnContext(ctx, "tick failed", "error", err)
			}
			if took := d.now().Sub(started); took > d.tickLength {
				slog.WarnContext(ctx, "tick overran", "took", took, "tick_length", d.tickLength)
			}
		}
	}
}

// Tick advances every ticker in order. Errors are collected so later
// tickers still run.
func (d *TickDriver) Tick(ctx context.Context) error {
	el := errors.NewErrorList()
	for i, t := range d.tickers {
		if err := t.Tick(ctx); err != nil {
			el.Add(fmt.Errorf("ticker %d: %w", i, err))
		}
	}
	return el.Err()
}
