package authority

import "sync"

// Mirror is the read-only replica of ownership kept by non-authoritative
// nodes. It only changes by applying broadcast transitions and is for
// display; claim decisions always go through the authority.
type Mirror struct {
	mu      sync.RWMutex
	entries map[EntityID]mirrorEntry
}

type mirrorEntry struct {
	owner     ActorID
	claimable bool
	seq       uint64
	kind      string
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		entries: make(map[EntityID]mirrorEntry),
	}
}

// Apply records t unless an equal or newer transition for the same entity
// was already applied. It reports whether the mirror changed.
func (m *Mirror) Apply(t Transition) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[t.Entity]
	if ok && t.Seq <= e.seq {
		return false
	}
	m.entries[t.Entity] = mirrorEntry{
		owner:     t.Next,
		claimable: t.Claimable,
		seq:       t.Seq,
		kind:      t.Kind,
	}
	return true
}

// Seed records the state of an entity first seen through a snapshot rather
// than a transition.
func (m *Mirror) Seed(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[r.Entity]; ok && e.seq > r.Seq {
		return
	}
	m.entries[r.Entity] = mirrorEntry{
		owner:     r.Owner,
		claimable: r.Claimable,
		seq:       r.Seq,
		kind:      r.Policy.Kind,
	}
}

// Forget drops an entity, typically after it despawned.
func (m *Mirror) Forget(id EntityID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)
}

// Owner returns the last known owner of the entity.
func (m *Mirror) Owner(id EntityID) (ActorID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	return e.owner, ok
}

// Free reports whether the entity was last seen unowned and claimable.
func (m *Mirror) Free(id EntityID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	return ok && e.owner == NoActor && e.claimable
}

// Seq returns the sequence number of the last transition applied for id.
func (m *Mirror) Seq(id EntityID) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.entries[id].seq
}
