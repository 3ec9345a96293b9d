package world

import "errors"

var (
	ErrActorNotFound  = errors.New("actor not found")
	ErrActorExists    = errors.New("actor already exists")
	ErrEntityNotFound = errors.New("entity not found")
	ErrEntityExists   = errors.New("entity already exists")
)
