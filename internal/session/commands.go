package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pixil98/go-authority/internal/authority"
	"github.com/pixil98/go-authority/internal/claim"
	"github.com/pixil98/go-authority/internal/display"
	"github.com/pixil98/go-authority/internal/messaging"
	"github.com/pixil98/go-authority/internal/protocol"
)

type commandFunc func(ctx context.Context, s *Session, args []string) error

var commands map[string]commandFunc

func init() {
	commands = map[string]commandFunc{
		"help":     helpCommand,
		"look":     lookCommand,
		"walk":     walkCommand,
		"interact": intentCommand(protocol.IntentInteract),
		"claim":    intentCommand(protocol.IntentClaim),
		"release":  intentCommand(protocol.IntentRelease),
		"confirm":  intentCommand(protocol.IntentConfirm),
		"die":      dieCommand,
		"quit":     quitCommand,
	}
}

func helpCommand(_ context.Context, s *Session, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return s.console.Println("Commands: " + strings.Join(names, ", "))
}

func lookCommand(ctx context.Context, s *Session, _ []string) error {
	snap, err := s.participant.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refreshing snapshot: %w", err)
	}
	if len(snap.Entities) == 0 {
		return s.console.Println("There is nothing here.")
	}

	actor := s.participant.Actor()
	for _, e := range snap.Entities {
		var state string
		switch {
		case e.Owner == actor && s.participant.Gate().Controls(e.Entity):
			state = "yours"
		case e.Owner == actor:
			state = "yours, awaiting control"
		case e.Owner != authority.NoActor:
			state = "taken"
		case !e.Claimable:
			state = "locked"
		default:
			state = "free"
		}
		line := fmt.Sprintf("%-16s %-12s %-8s %s", display.EntityName(e.Entity.String()), e.Entity, e.Kind, state)
		if err := s.console.Println(line); err != nil {
			return err
		}
	}
	return nil
}

func walkCommand(_ context.Context, s *Session, _ []string) error {
	if !s.participant.Gate().CanMove() {
		return NewUserError("You cannot walk while steering a mount.")
	}
	return s.console.Println("You walk around.")
}

func intentCommand(intent protocol.Intent) commandFunc {
	return func(ctx context.Context, s *Session, args []string) error {
		if len(args) != 1 {
			return NewUserError(fmt.Sprintf("Usage: %s <entity>", intent))
		}
		entity := authority.EntityID(strings.ToLower(args[0]))
		name := display.EntityName(entity.String())

		out, err := s.participant.Send(ctx, intent, entity)
		if errors.Is(err, messaging.ErrInFlight) {
			return NewUserError(fmt.Sprintf("You are already reaching for %s.", name))
		}
		if err != nil {
			return err
		}

		switch out {
		case claim.OutcomeCommitted:
			// Control changes are reported by the gate listener.
			if intent == protocol.IntentConfirm {
				return s.console.Println(fmt.Sprintf("You secure %s.", name))
			}
			return nil
		case claim.OutcomeUnchanged:
			return s.console.Println("Nothing happens.")
		case claim.OutcomeRejected:
			return NewUserError(fmt.Sprintf("%s is not available.", name))
		case claim.OutcomeStale:
			return NewUserError(fmt.Sprintf("You do not hold %s.", name))
		default:
			return NewUserError(fmt.Sprintf("There is no %s here.", entity))
		}
	}
}

func dieCommand(ctx context.Context, s *Session, _ []string) error {
	if err := s.participant.Die(ctx); err != nil {
		return err
	}
	return s.console.Println("You die. Everything you held slips away.")
}

func quitCommand(_ context.Context, s *Session, _ []string) error {
	s.quit = true
	return s.console.Println("Goodbye!")
}
