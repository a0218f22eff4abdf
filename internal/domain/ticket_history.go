package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus   TicketChangeType = "STATUS_CHANGE"
	ChangeTypeAssigned TicketChangeType = "ASSIGNED"
)

// TicketHistory is an immutable audit trail entry. Status changes are recorded
// here independently of the message thread, so "who replied" and "what state
// the ticket is in" stay separately auditable.
type TicketHistory struct {
	ID         string
	TicketID   string
	ChangedBy  Actor
	ChangeType TicketChangeType
	OldStatus  TicketStatus
	NewStatus  TicketStatus
	CreatedAt  time.Time
}
