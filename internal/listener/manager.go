package listener

import (
	"context"
	"io"
	"log/slog"
)

// SessionRunner plays one participant session over a connection.
type SessionRunner interface {
	RunSession(ctx context.Context, conn io.ReadWriter) error
}

type ConnectionManager struct {
	sessions SessionRunner
}

func NewConnectionManager(sessions SessionRunner) *ConnectionManager {
	return &ConnectionManager{
		sessions: sessions,
	}
}

func (m *ConnectionManager) AcceptConnection(ctx context.Context, conn io.ReadWriter) {
	if err := m.sessions.RunSession(ctx, conn); err != nil {
		slog.WarnContext(ctx, "participant session", "error", err)
	}
}
