package claim

import (
	"errors"

	"github.com/pixil98/go-authority/internal/authority"
)

// ErrConfirmationTimeout is reported to an actor whose claim was reverted
// because it was not confirmed in time.
var ErrConfirmationTimeout = errors.New("claim was not confirmed in time")

// Outcome is the result of a request as seen by the requester. Rejected and
// stale requests are not errors; nothing happened.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeRejected  Outcome = "rejected"
	OutcomeStale     Outcome = "stale"
	OutcomeUnknown   Outcome = "unknown"
)

// Changed reports whether the request produced a transition.
func (o Outcome) Changed() bool {
	return o == OutcomeCommitted
}

func outcomeOf(r authority.Result) Outcome {
	switch r {
	case authority.Committed:
		return OutcomeCommitted
	case authority.Unchanged:
		return OutcomeUnchanged
	case authority.Rejected:
		return OutcomeRejected
	case authority.Stale:
		return OutcomeStale
	default:
		return OutcomeUnknown
	}
}
