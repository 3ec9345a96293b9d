package command

import (
	"github.com/pixil98/go-authority/internal/messaging"
	"github.com/pixil98/go-errors"
)

type NatsConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	StartTimeout string `json:"start_timeout"`
}

func (c *NatsConfig) validate() error {
	el := errors.NewErrorList()

	_, err := optionalDuration("start_timeout", c.StartTimeout)
	el.Add(err)

	return el.Err()
}

func (c *NatsConfig) buildNatsServer() (*messaging.NatsServer, error) {
	var opts []messaging.NatsServerOpt

	timeout, err := optionalDuration("start_timeout", c.StartTimeout)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		opts = append(opts, messaging.WithStartTimeout(timeout))
	}
	if c.Host != "" {
		opts = append(opts, messaging.WithHost(c.Host))
	}
	if c.Port != 0 {
		opts = append(opts, messaging.WithPort(c.Port))
	}

	return messaging.NewNatsServer(opts...)
}
