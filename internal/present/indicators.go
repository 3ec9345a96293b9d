package present

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pixil98/go-authority/internal/authority"
)

// Indicators holds the authority's visual control state for each entity.
type Indicators struct {
	controlled map[authority.EntityID]bool

	mu sync.RWMutex
}

func NewIndicators() *Indicators {
	return &Indicators{controlled: map[authority.EntityID]bool{}}
}

// OnControlChanged satisfies claim.Presenter.
func (i *Indicators) OnControlChanged(ctx context.Context, entity authority.EntityID, controlled bool) {
	i.mu.Lock()
	if controlled {
		i.controlled[entity] = true
	} else {
		delete(i.controlled, entity)
	}
	i.mu.Unlock()

	slog.DebugContext(ctx, "control indicator", "entity", entity, "controlled", controlled)
}

func (i *Indicators) Controlled(entity authority.EntityID) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.controlled[entity]
}
