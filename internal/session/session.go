package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pixil98/go-authority/internal/messaging"
	"github.com/pixil98/go-authority/internal/present"
)

// Session is one connected participant driving an actor from a terminal.
type Session struct {
	participant *messaging.Participant
	console     *present.Console
	input       *bufio.Reader
	quit        bool
}

func (s *Session) Play(ctx context.Context) error {
	lines := make(chan string)
	inputErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		for {
			line, err := readLine(s.input)
			if err != nil {
				inputErr <- err
				return
			}
			select {
			case lines <- line:
			case <-done:
				return
			}
		}
	}()

	if err := s.exec(ctx, "look"); err != nil {
		return err
	}
	if err := s.prompt(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				// Connection lost; the caller still announces the disconnect.
				select {
				case err := <-inputErr:
					return ignoreEOF(err)
				default:
					return nil
				}
			}

			line = strings.TrimSpace(line)
			if line != "" {
				if err := s.exec(ctx, line); err != nil {
					return err
				}
				if s.quit {
					return nil
				}
			}

			if err := s.prompt(); err != nil {
				return err
			}
		}
	}
}

func (s *Session) exec(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	cmd, ok := commands[strings.ToLower(parts[0])]
	if !ok {
		return s.console.Println(fmt.Sprintf("Unknown command %q. Type help.", parts[0]))
	}

	err := cmd(ctx, s, parts[1:])
	var userErr *UserError
	if errors.As(err, &userErr) {
		return s.console.Println(userErr.Message)
	}
	if err != nil {
		// Transport trouble is reported but does not end the session.
		slog.WarnContext(ctx, "command failed", "actor", s.participant.Actor(), "command", parts[0], "error", err)
		return s.console.Println("The world does not respond. Try again.")
	}
	return nil
}

func (s *Session) prompt() error {
	return s.console.Printf("> ")
}
