package authority

// EntityID identifies anything that can be owned: a mount, a droppable item,
// a capturable target.
type EntityID string

func (id EntityID) String() string {
	return string(id)
}

// ActorID identifies a controllable participant.
type ActorID string

// NoActor is the empty owner.
const NoActor ActorID = ""

func (id ActorID) String() string {
	if id == NoActor {
		return "none"
	}
	return string(id)
}

// Transition is the event emitted for every committed ownership change.
// Seq is per entity and strictly increasing in commit order.
type Transition struct {
	Entity EntityID `json:"entity"`
	Prev   ActorID  `json:"prev,omitempty"`
	Next   ActorID  `json:"next,omitempty"`
	Seq    uint64   `json:"seq"`

	// Kind is the entity's kind label as registered with the store.
	Kind string `json:"kind,omitempty"`

	// Steers is set when the owner's input drives the entity instead of the
	// owner itself (riding a mount).
	Steers bool `json:"steers,omitempty"`

	// Claimable is the replicated acceptance flag after the transition.
	Claimable bool `json:"claimable"`

	// AwaitConfirm is set on claims the new owner must confirm before the
	// confirmation window closes.
	AwaitConfirm bool `json:"await_confirm,omitempty"`

	// Removed is set on the last transition of a despawned entity. A later
	// entity with the same id continues the sequence.
	Removed bool `json:"removed,omitempty"`
}

// IsClaim reports whether the transition moves the entity from unowned to owned.
func (t Transition) IsClaim() bool {
	return t.Prev == NoActor && t.Next != NoActor
}

// IsRelease reports whether the transition leaves the entity without an owner.
func (t Transition) IsRelease() bool {
	return t.Prev != NoActor && t.Next == NoActor
}

// Names reports whether the actor appears on either side of the transition.
func (t Transition) Names(actor ActorID) bool {
	if actor == NoActor {
		return false
	}
	return t.Prev == actor || t.Next == actor
}
