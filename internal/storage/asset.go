package storage

import (
	"fmt"
	"regexp"

	"github.com/pixil98/go-errors"
)

var identifierPattern = regexp.MustCompile(`^[a-z0-9-]*$`)

type ValidatingSpec interface {
	Validate() error
}

// Asset is the on-disk envelope for a definition.
type Asset[T ValidatingSpec] struct {
	Version    uint   `json:"version" yaml:"version"`
	Identifier string `json:"id" yaml:"id"`
	Spec       T      `json:"spec" yaml:"spec"`
}

func (a *Asset[T]) Validate() error {
	el := errors.NewErrorList()

	if a.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	}

	if a.Identifier == "" {
		el.Add(fmt.Errorf("id must be set"))
	}

	// Instance ids are built from the definition id, so keep it lower-case.
	if !identifierPattern.MatchString(a.Identifier) {
		el.Add(fmt.Errorf("id must be lower-case alphanumeric"))
	}

	el.Add(a.Spec.Validate())

	return el.Err()
}
