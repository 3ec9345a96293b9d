package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/display"
	"github.com/pixil98/go-authority/internal/gate"
	"github.com/pixil98/go-authority/internal/messaging"
	"github.com/pixil98/go-authority/internal/present"
)

const maxNameTries = 3

type ManagerOpt func(*Manager)

// WithRequestTimeout bounds each session's requests to the authority.
func WithRequestTimeout(d time.Duration) ManagerOpt {
	return func(m *Manager) {
		m.requestTimeout = d
	}
}

// Manager runs a session for every accepted connection.
type Manager struct {
	bus            messaging.Bus
	renderer       *present.Renderer
	requestTimeout time.Duration

	mu    sync.Mutex
	gates map[authority.ActorID]*gate.Gate
}

func NewManager(bus messaging.Bus, renderer *present.Renderer, opts ...ManagerOpt) *Manager {
	m := &Manager{
		bus:            bus,
		renderer:       renderer,
		requestTimeout: messaging.DefaultRequestTimeout,
		gates:          map[authority.ActorID]*gate.Gate{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Manager) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Tick expires stale in-flight marks in every session's gate.
func (m *Manager) Tick(ctx context.Context) error {
	m.mu.Lock()
	gates := make([]*gate.Gate, 0, len(m.gates))
	for _, g := range m.gates {
		gates = append(gates, g)
	}
	m.mu.Unlock()

	for _, g := range gates {
		if err := g.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.gates)
}

// RunSession asks for a name, joins the authority as a new actor and plays
// until the participant quits or the connection ends. Everything the actor
// owns is released when it returns.
func (m *Manager) RunSession(ctx context.Context, conn io.ReadWriter) error {
	select {
	case <-m.bus.Ready():
	case <-ctx.Done():
		return nil
	}

	input := bufio.NewReader(conn)
	console := present.NewConsole(conn, m.renderer)

	_ = console.Println("Welcome. Claim something.")
	name, err := sessionName(input, conn)
	if err != nil {
		return ignoreEOF(err)
	}

	actor := authority.ActorID(uuid.NewString())
	g := gate.NewGate(actor, gate.WithListener(console))
	p := messaging.NewParticipant(m.bus, display.Title(name), g,
		messaging.WithRequestTimeout(m.requestTimeout),
		messaging.WithNoticeHandler(console.Notice),
	)

	if err := p.Join(ctx); err != nil {
		return fmt.Errorf("joining as %s: %w", name, err)
	}
	m.add(actor, g)
	slog.InfoContext(ctx, "session started", "actor", actor, "name", name)

	defer func() {
		m.remove(actor)
		if err := p.Leave(context.WithoutCancel(ctx)); err != nil {
			slog.WarnContext(ctx, "leaving", "actor", actor, "error", err)
		}
		slog.InfoContext(ctx, "session ended", "actor", actor, "name", name)
	}()

	s := &Session{
		participant: p,
		console:     console,
		input:       input,
	}
	return s.Play(ctx)
}

func (m *Manager) add(actor authority.ActorID, g *gate.Gate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gates[actor] = g
}

func (m *Manager) remove(actor authority.ActorID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gates, actor)
}

// Named is implemented by connections whose transport already identified the
// participant, such as an ssh user.
type Named interface {
	Name() string
}

func sessionName(input *bufio.Reader, conn io.ReadWriter) (string, error) {
	if n, ok := conn.(Named); ok {
		if valid, _ := validName(n.Name()); valid {
			return n.Name(), nil
		}
	}
	return Prompt(input, conn, "By what name do you wish to be known? ",
		WithMaxTries(maxNameTries),
		WithValidator(validName),
	)
}

func validName(s string) (bool, string) {
	if s == "" {
		return false, "Invalid name, please try another.\n"
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false, "Names may only contain letters.\n"
		}
	}
	return true, ""
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
