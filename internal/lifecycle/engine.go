// Package lifecycle implements the ticket state machine. It is pure
// computation: callers read the persisted status, ask the engine for the next
// state, and write it back under an optimistic check.
package lifecycle

import (
	"fmt"

	"github.com/spec-kit/support-service/internal/domain"
)

// Transition identifies a requested status change.
type Transition string

const (
	TransitionAssign  Transition = "assign"
	TransitionResolve Transition = "resolve"
	TransitionReopen  Transition = "reopen"
)

// InvalidTransitionError reports a transition that is not legal from the
// current state. State is left unchanged by the caller.
type InvalidTransitionError struct {
	From      domain.TicketStatus
	Requested Transition
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %q not allowed from status %s", e.Requested, e.From)
}

var edges = map[Transition]map[domain.TicketStatus]domain.TicketStatus{
	TransitionAssign: {
		domain.TicketStatusOpen: domain.TicketStatusInProgress,
	},
	TransitionResolve: {
		domain.TicketStatusOpen:       domain.TicketStatusResolved,
		domain.TicketStatusInProgress: domain.TicketStatusResolved,
	},
	TransitionReopen: {
		// Reopening lands back on OPEN, not IN_PROGRESS.
		domain.TicketStatusResolved: domain.TicketStatusOpen,
	},
}

// Next returns the state reached by applying the transition to current. The
// result is total: either a new state or an InvalidTransitionError.
func Next(current domain.TicketStatus, t Transition) (domain.TicketStatus, error) {
	if next, ok := edges[t][current]; ok {
		return next, nil
	}
	return current, &InvalidTransitionError{From: current, Requested: t}
}

// CanReply reports whether the thread accepts new messages in the given state.
// Resolved and closed tickets show no reply form.
func CanReply(status domain.TicketStatus) bool {
	return status == domain.TicketStatusOpen || status == domain.TicketStatusInProgress
}
