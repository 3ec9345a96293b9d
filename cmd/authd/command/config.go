package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
)

const minTickInterval = 10 * time.Millisecond

type Config struct {
	TickInterval string            `json:"tick_interval"`
	Listeners    []ListenerConfig  `json:"listeners"`
	Storage      StorageConfig     `json:"storage"`
	Nats         NatsConfig        `json:"nats"`
	Coordinator  CoordinatorConfig `json:"coordinator"`
	Session      SessionConfig     `json:"session"`
	Journal      JournalConfig     `json:"journal"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		el.Add(fmt.Errorf("parsing tick_interval: %w", err))
	} else if d < minTickInterval {
		el.Add(fmt.Errorf("tick_interval must be at least %s", minTickInterval))
	}

	for i, l := range c.Listeners {
		if err := l.validate(); err != nil {
			el.Add(fmt.Errorf("listener %d: %w", i, err))
		}
	}

	el.Add(c.Storage.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Coordinator.validate())
	el.Add(c.Session.validate())
	el.Add(c.Journal.validate())

	return el.Err()
}

func (c *Config) tickInterval() time.Duration {
	d, _ := time.ParseDuration(c.TickInterval)
	return d
}

// optionalDuration parses s, treating "" as unset.
func optionalDuration(name, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return d, nil
}
