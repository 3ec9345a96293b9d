package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-authority/internal/authority"
)

// Subjects used on the message bus.
const (
	SubjectRequest     = "authority.request"
	SubjectPresence    = "authority.presence"
	SubjectSnapshot    = "authority.snapshot"
	SubjectTransitions = "authority.transitions"
)

// ActorSubject is the subject for notices addressed to a single actor.
func ActorSubject(actor authority.ActorID) string {
	return fmt.Sprintf("authority.actor.%s", actor)
}

// Intent is what a request asks the authority to do.
type Intent string

const (
	IntentClaim    Intent = "claim"
	IntentRelease  Intent = "release"
	IntentInteract Intent = "interact"
	IntentConfirm  Intent = "confirm"
)

// Valid reports whether i is a known intent.
func (i Intent) Valid() bool {
	switch i {
	case IntentClaim, IntentRelease, IntentInteract, IntentConfirm:
		return true
	default:
		return false
	}
}

// Request is sent from an actor to the authority.
type Request struct {
	Entity authority.EntityID `json:"entity"`
	Actor  authority.ActorID  `json:"actor"`
	Intent Intent             `json:"intent"`
}

// Validate checks the request is well formed.
func (r Request) Validate() error {
	if r.Entity == "" {
		return fmt.Errorf("entity is required")
	}
	if r.Actor == authority.NoActor {
		return fmt.Errorf("actor is required")
	}
	if !r.Intent.Valid() {
		return fmt.Errorf("unknown intent %q", r.Intent)
	}
	return nil
}

// Reply answers a Request. Outcome mirrors claim.Outcome.
type Reply struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// PresenceEvent is a change in an actor's participation.
type PresenceEvent string

const (
	PresenceConnect    PresenceEvent = "connect"
	PresenceDisconnect PresenceEvent = "disconnect"
	PresenceDeath      PresenceEvent = "death"
)

// Presence is sent from an actor's node to the authority.
type Presence struct {
	Actor authority.ActorID `json:"actor"`
	Name  string            `json:"name,omitempty"`
	Event PresenceEvent     `json:"event"`
}

// Notice is sent from the authority to a single actor.
type Notice struct {
	Entity authority.EntityID `json:"entity"`
	Reason string             `json:"reason"`
}

// EntityState is one entry of a snapshot.
type EntityState struct {
	Entity    authority.EntityID `json:"entity"`
	Owner     authority.ActorID  `json:"owner,omitempty"`
	Claimable bool               `json:"claimable"`
	Seq       uint64             `json:"seq"`
	Kind      string             `json:"kind"`
}

// Snapshot is the authority's answer on SubjectSnapshot.
type Snapshot struct {
	Entities []EntityState `json:"entities"`
}

// NewSnapshot converts store records into a snapshot.
func NewSnapshot(records []authority.Record) Snapshot {
	s := Snapshot{Entities: make([]EntityState, 0, len(records))}
	for _, r := range records {
		s.Entities = append(s.Entities, EntityState{
			Entity:    r.Entity,
			Owner:     r.Owner,
			Claimable: r.Claimable,
			Seq:       r.Seq,
			Kind:      r.Policy.Kind,
		})
	}
	return s
}

// Record converts a snapshot entry back into a record for seeding a mirror.
func (e EntityState) Record() authority.Record {
	return authority.Record{
		Entity:    e.Entity,
		Owner:     e.Owner,
		Claimable: e.Claimable,
		Seq:       e.Seq,
		Policy:    authority.Policy{Kind: e.Kind},
	}
}

// Encode marshals a message for the bus.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	return b, nil
}

// Decode unmarshals a message from the bus.
func Decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decoding %T: %w", v, err)
	}
	return v, nil
}
