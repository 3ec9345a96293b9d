package spawn

import (
	"fmt"
	"time"

	"github.com/pixil98/go-authority/internal/world"
	"github.com/pixil98/go-errors"
)

// EntityDef describes a group of identical entities to spawn.
type EntityDef struct {
	Name  string     `json:"name" yaml:"name"`
	Kind  world.Kind `json:"kind" yaml:"kind"`
	Count int        `json:"count" yaml:"count"`

	// Locked instances refuse every claim.
	Locked bool `json:"locked" yaml:"locked"`

	ClaimableWhileOwned bool `json:"claimable_while_owned" yaml:"claimable_while_owned"`

	// ConfirmTimeout is a Go duration string, e.g. "1s".
	ConfirmTimeout string `json:"confirm_timeout,omitempty" yaml:"confirm_timeout,omitempty"`
}

func (d *EntityDef) Validate() error {
	el := errors.NewErrorList()

	if d.Name == "" {
		el.Add(fmt.Errorf("name is required"))
	}

	if !d.Kind.Valid() {
		el.Add(fmt.Errorf("kind %q is not one of mount, pickup, capture", d.Kind))
	}

	if d.Count < 1 {
		el.Add(fmt.Errorf("count must be at least 1"))
	}

	if d.ConfirmTimeout != "" {
		timeout, err := time.ParseDuration(d.ConfirmTimeout)
		switch {
		case err != nil:
			el.Add(fmt.Errorf("confirm_timeout: %w", err))
		case timeout <= 0:
			el.Add(fmt.Errorf("confirm_timeout must be positive"))
		case d.Kind.Valid() && !d.Kind.RequiresConfirmation():
			el.Add(fmt.Errorf("confirm_timeout does not apply to %s", d.Kind))
		}
	}

	return el.Err()
}

// Timeout returns the parsed confirmation timeout, or zero when unset.
func (d *EntityDef) Timeout() time.Duration {
	timeout, _ := time.ParseDuration(d.ConfirmTimeout)
	return timeout
}
