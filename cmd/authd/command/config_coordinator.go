package command

import (
	"fmt"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/claim"
	"github.com/pixil98/go-authority/internal/world"
	"github.com/pixil98/go-errors"
)

type CoordinatorConfig struct {
	// ConfirmTimeout applies to every kind that needs confirmation unless
	// overridden in Kinds or by the entity's definition.
	ConfirmTimeout string                    `json:"confirm_timeout"`
	Kinds          map[world.Kind]KindConfig `json:"kinds"`
}

type KindConfig struct {
	ConfirmTimeout string `json:"confirm_timeout"`
}

func (c *CoordinatorConfig) validate() error {
	el := errors.NewErrorList()

	_, err := optionalDuration("confirm_timeout", c.ConfirmTimeout)
	el.Add(err)

	for kind, kc := range c.Kinds {
		if !kind.Valid() {
			el.Add(fmt.Errorf("kinds: unknown kind %q", kind))
			continue
		}
		if !kind.RequiresConfirmation() && kc.ConfirmTimeout != "" {
			el.Add(fmt.Errorf("kinds.%s: %s claims are not confirmed", kind, kind))
			continue
		}
		_, err := optionalDuration(fmt.Sprintf("kinds.%s.confirm_timeout", kind), kc.ConfirmTimeout)
		el.Add(err)
	}

	return el.Err()
}

func (c *CoordinatorConfig) buildCoordinator(store *authority.Store, registry *world.Registry, opts ...claim.CoordinatorOpt) (*claim.Coordinator, error) {
	timeout, err := optionalDuration("confirm_timeout", c.ConfirmTimeout)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		opts = append(opts, claim.WithConfirmTimeout(timeout))
	}

	for kind, kc := range c.Kinds {
		d, err := optionalDuration(fmt.Sprintf("kinds.%s.confirm_timeout", kind), kc.ConfirmTimeout)
		if err != nil {
			return nil, err
		}
		if d > 0 {
			opts = append(opts, claim.WithKindConfirmTimeout(kind, d))
		}
	}

	return claim.NewCoordinator(store, registry, opts...), nil
}
