package command

import (
	"fmt"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/claim"
	"github.com/pixil98/go-authority/internal/driver"
	"github.com/pixil98/go-authority/internal/input"
	"github.com/pixil98/go-authority/internal/journal"
	"github.com/pixil98/go-authority/internal/listener"
	"github.com/pixil98/go-authority/internal/messaging"
	"github.com/pixil98/go-authority/internal/present"
	"github.com/pixil98/go-authority/internal/spatial"
	"github.com/pixil98/go-authority/internal/spawn"
	"github.com/pixil98/go-authority/internal/world"
	"github.com/pixil98/go-service"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	natsServer, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	defs, err := cfg.Storage.Entities.buildFileStore()
	if err != nil {
		return nil, fmt.Errorf("loading entity definitions: %w", err)
	}

	sessions, err := cfg.Session.buildManager(natsServer)
	if err != nil {
		return nil, fmt.Errorf("creating session manager: %w", err)
	}

	// Create Listeners
	cm := listener.NewConnectionManager(sessions)
	listeners := make(service.WorkerList, len(cfg.Listeners))
	for i, l := range cfg.Listeners {
		w, err := l.buildListener(cm)
		if err != nil {
			return nil, fmt.Errorf("creating listener %d: %w", i, err)
		}
		listeners[fmt.Sprintf("listener-%d", i)] = w
	}

	workers := service.WorkerList{}

	// The authority and its collaborators
	registry := world.NewRegistry()
	publisher := messaging.NewPublisher(natsServer)
	broadcasters := claim.Broadcasters{publisher}
	var jnl *journal.Journal
	if cfg.Journal.enabled() {
		jnl, err = cfg.Journal.buildJournal()
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		broadcasters = append(broadcasters, jnl)
		workers["journal"] = jnl
	}

	coord, err := cfg.Coordinator.buildCoordinator(authority.NewStore(), registry,
		claim.WithSpatial(spatial.NewScene(registry)),
		claim.WithInputRouter(input.NewRouter()),
		claim.WithPresenter(present.NewIndicators()),
		claim.WithBroadcaster(broadcasters),
		claim.WithNotifier(publisher),
	)
	if err != nil {
		if jnl != nil {
			_ = jnl.Close()
		}
		return nil, fmt.Errorf("creating coordinator: %w", err)
	}

	tickDriver := driver.NewTickDriver(
		[]driver.Ticker{coord, sessions},
		driver.WithTickLength(cfg.tickInterval()),
	)

	workers["nats"] = natsServer
	workers["authority"] = messaging.NewAuthorityNode(natsServer, coord)
	workers["spawner"] = spawn.NewManager(defs, coord)
	workers["sessions"] = sessions
	workers["driver"] = tickDriver
	workers["listeners"] = &listeners

	return workers, nil
}
