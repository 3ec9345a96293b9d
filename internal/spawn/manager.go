package spawn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/storage"
	"github.com/pixil98/go-authority/internal/world"
	"github.com/pixil98/go-errors"
)

// Attacher places entities under the authority and removes them again.
type Attacher interface {
	Attach(ctx context.Context, e *world.Entity) error
	Detach(ctx context.Context, id authority.EntityID) error
}

// Manager spawns every defined entity when started and despawns them when
// its context ends.
type Manager struct {
	defs     storage.Catalog[*EntityDef]
	attacher Attacher

	mu      sync.Mutex
	spawned []authority.EntityID
}

func NewManager(defs storage.Catalog[*EntityDef], attacher Attacher) *Manager {
	return &Manager{
		defs:     defs,
		attacher: attacher,
	}
}

func (m *Manager) Start(ctx context.Context) error {
	if err := m.SpawnAll(ctx); err != nil {
		// Leave nothing half spawned behind.
		_ = m.DespawnAll(context.WithoutCancel(ctx))
		return err
	}

	<-ctx.Done()
	return m.DespawnAll(context.WithoutCancel(ctx))
}

// SpawnAll attaches Count instances of every definition. Instance ids are
// "<definition>-<n>" counting from 1.
func (m *Manager) SpawnAll(ctx context.Context) error {
	now := time.Now()

	for _, defId := range m.defs.IDs() {
		def, ok := m.defs.Get(defId)
		if !ok {
			continue
		}

		for n := 1; n <= def.Count; n++ {
			e := &world.Entity{
				ID:                  authority.EntityID(fmt.Sprintf("%s-%d", defId, n)),
				DefinitionId:        defId,
				Name:                def.Name,
				Kind:                def.Kind,
				Locked:              def.Locked,
				ClaimableWhileOwned: def.ClaimableWhileOwned,
				ConfirmTimeout:      def.Timeout(),
				SpawnedAt:           now,
			}
			if err := m.attacher.Attach(ctx, e); err != nil {
				return fmt.Errorf("spawning %s: %w", e.ID, err)
			}

			m.mu.Lock()
			m.spawned = append(m.spawned, e.ID)
			m.mu.Unlock()
		}
		slog.InfoContext(ctx, "spawned entities", "definition", defId, "kind", def.Kind, "count", def.Count)
	}

	return nil
}

// DespawnAll detaches everything this manager spawned, releasing any owner.
func (m *Manager) DespawnAll(ctx context.Context) error {
	m.mu.Lock()
	spawned := m.spawned
	m.spawned = nil
	m.mu.Unlock()

	el := errors.NewErrorList()
	for _, id := range spawned {
		if err := m.attacher.Detach(ctx, id); err != nil {
			el.Add(fmt.Errorf("despawning %s: %w", id, err))
		}
	}
	if len(spawned) > 0 {
		slog.InfoContext(ctx, "despawned entities", "count", len(spawned))
	}
	return el.Err()
}

// Spawned returns the ids currently spawned, in spawn order.
func (m *Manager) Spawned() []authority.EntityID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]authority.EntityID(nil), m.spawned...)
}
