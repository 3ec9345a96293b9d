package driver

import "time"

type TickDriverOpt func(*TickDriver)

// WithTickLength sets how often deadlines are checked.
func WithTickLength(tickLength time.Duration) TickDriverOpt {
	return func(d *TickDriver) {
		d.tickLength = tickLength
	}
}

// WithClock replaces time.Now for measuring tick duration.
func WithClock(now func() time.Time) TickDriverOpt {
	return func(d *TickDriver) {
		d.now = now
	}
}
