package authority

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrUnknownEntity = errors.New("entity not registered")
	ErrEntityExists  = errors.New("entity already registered")
)

// Result describes how the store resolved a request.
type Result int

const (
	// Committed means the record changed and a transition was produced.
	Committed Result = iota
	// Unchanged means the request was already satisfied; no transition.
	Unchanged
	// Rejected means the claim lost: owned by someone else or not claimable.
	Rejected
	// Stale means a release came from an actor that does not own the entity.
	Stale
	// Unknown means the entity is not registered.
	Unknown
)

func (r Result) String() string {
	switch r {
	case Committed:
		return "committed"
	case Unchanged:
		return "unchanged"
	case Rejected:
		return "rejected"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Policy controls how an entity accepts claims.
type Policy struct {
	Kind   string
	Steers bool

	// Claimable is the acceptance flag while the entity has no owner.
	Claimable bool

	// ClaimableWhileOwned is the replicated acceptance flag while owned. It
	// never admits a second owner.
	ClaimableWhileOwned bool
}

// Record is a copy of the authoritative state of one entity.
type Record struct {
	Entity    EntityID
	Owner     ActorID
	Claimable bool
	Seq       uint64
	Policy    Policy
}

type record struct {
	owner     ActorID
	claimable bool
	seq       uint64
	policy    Policy
}

// Store is the authoritative ownership record per entity. Each mutation is a
// single check-and-set under the store lock.
type Store struct {
	mu      sync.Mutex
	records map[EntityID]*record

	// retired holds the last sequence of unregistered ids.
	retired map[EntityID]uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[EntityID]*record),
		retired: make(map[EntityID]uint64),
	}
}

// Register adds an unowned entity with the given policy.
func (s *Store) Register(id EntityID, p Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; ok {
		return ErrEntityExists
	}
	// A re-registered id continues its sequence so replicas that saw the
	// old entity do not treat new transitions as stale.
	s.records[id] = &record{
		claimable: p.Claimable,
		seq:       s.retired[id],
		policy:    p,
	}
	delete(s.retired, id)
	return nil
}

// Unregister removes an entity and returns its final transition, which has
// Removed set and releases any owner. ok is false for an unknown entity.
func (s *Store) Unregister(id EntityID) (Transition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return Transition{}, false
	}
	prev := r.owner
	r.owner = NoActor
	r.claimable = false
	t := s.commit(id, r, prev)
	t.Removed = true

	delete(s.records, id)
	s.retired[id] = r.seq
	return t, true
}

// TryClaim gives the entity to actor if it is unowned and claimable.
func (s *Store) TryClaim(id EntityID, actor ActorID) (Transition, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return Transition{}, Unknown
	}
	if actor == NoActor {
		return Transition{}, Rejected
	}
	if r.owner == actor {
		return Transition{}, Unchanged
	}
	if r.owner != NoActor || !r.claimable {
		return Transition{}, Rejected
	}

	r.owner = actor
	r.claimable = r.policy.ClaimableWhileOwned
	return s.commit(id, r, NoActor), Committed
}

// Release clears the owner if actor currently owns the entity.
func (s *Store) Release(id EntityID, actor ActorID) (Transition, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return Transition{}, Unknown
	}
	if r.owner == NoActor {
		return Transition{}, Unchanged
	}
	if r.owner != actor {
		return Transition{}, Stale
	}

	t, _ := s.forceRelease(id, r)
	return t, Committed
}

// ForceRelease clears the owner unconditionally. It reports false when the
// entity was already unowned or is not registered.
func (s *Store) ForceRelease(id EntityID) (Transition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return Transition{}, false
	}
	return s.forceRelease(id, r)
}

// Get returns a copy of the entity's record.
func (s *Store) Get(id EntityID) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return Record{
		Entity:    id,
		Owner:     r.owner,
		Claimable: r.claimable,
		Seq:       r.seq,
		Policy:    r.policy,
	}, true
}

// OwnedBy returns the entities owned by actor in id order.
func (s *Store) OwnedBy(actor ActorID) []EntityID {
	if actor == NoActor {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []EntityID
	for id, r := range s.records {
		if r.owner == actor {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Entities returns every registered entity in id order.
func (s *Store) Entities() []EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]EntityID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// forceRelease must be called with s.mu held.
func (s *Store) forceRelease(id EntityID, r *record) (Transition, bool) {
	if r.owner == NoActor {
		return Transition{}, false
	}
	prev := r.owner
	r.owner = NoActor
	r.claimable = r.policy.Claimable
	return s.commit(id, r, prev), true
}

// commit must be called with s.mu held after r.owner has been updated.
func (s *Store) commit(id EntityID, r *record, prev ActorID) Transition {
	r.seq++
	return Transition{
		Entity:    id,
		Prev:      prev,
		Next:      r.owner,
		Seq:       r.seq,
		Kind:      r.policy.Kind,
		Steers:    r.policy.Steers,
		Claimable: r.claimable,
	}
}
