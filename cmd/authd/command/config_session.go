package command

import (
	"fmt"

	"github.com/pixil98/go-authority/internal/messaging"
	"github.com/pixil98/go-authority/internal/present"
	"github.com/pixil98/go-authority/internal/session"
	"github.com/pixil98/go-errors"
)

type SessionConfig struct {
	RequestTimeout string `json:"request_timeout"`

	// Messages overrides the text templates shown to participants, keyed by
	// gained, lost, available or failed.
	Messages map[present.Event]string `json:"messages"`
}

func (c *SessionConfig) validate() error {
	el := errors.NewErrorList()

	_, err := optionalDuration("request_timeout", c.RequestTimeout)
	el.Add(err)

	for ev := range c.Messages {
		if _, ok := present.DefaultTemplates[ev]; !ok {
			el.Add(fmt.Errorf("messages: unknown event %q", ev))
		}
	}
	if _, err := present.NewRenderer(c.Messages); err != nil {
		el.Add(fmt.Errorf("messages: %w", err))
	}

	return el.Err()
}

func (c *SessionConfig) buildManager(bus messaging.Bus) (*session.Manager, error) {
	renderer, err := present.NewRenderer(c.Messages)
	if err != nil {
		return nil, fmt.Errorf("building renderer: %w", err)
	}

	var opts []session.ManagerOpt
	timeout, err := optionalDuration("request_timeout", c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		opts = append(opts, session.WithRequestTimeout(timeout))
	}

	return session.NewManager(bus, renderer, opts...), nil
}
