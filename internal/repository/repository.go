package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/support-service/internal/domain"
)

// Sentinel errors shared by all storage implementations.
var (
	// ErrNotFound indicates the ticket id is unknown.
	ErrNotFound = errors.New("ticket not found")
	// ErrConcurrentModification indicates an optimistic status check lost a
	// race; the stored status no longer matches what the caller read.
	ErrConcurrentModification = errors.New("ticket modified concurrently")
	// ErrNotOpenForReply indicates an append found the ticket resolved or
	// closed at commit time.
	ErrNotOpenForReply = errors.New("ticket not open for reply")
)

// TicketFilter captures staff search parameters.
type TicketFilter struct {
	RequesterID *string
	Statuses    []domain.TicketStatus
	Categories  []domain.TicketCategory
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket and thread persistence. Reads of a
// ticket always reflect all previously committed appends and transitions for
// that ticket; cross-ticket ordering is not guaranteed.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// ListByRequester returns the requester's tickets ordered by creation
	// time, newest first.
	ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListMessages(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
	// AppendMessage stores msg at the next sequence position for its ticket
	// and bumps the ticket's updated_at. Position assignment is serialized
	// per ticket: concurrent appends never collide on a position and never
	// drop a message. The ticket's status is re-read inside the same
	// critical section; ErrNotOpenForReply is returned when it is no longer
	// open or in progress. Assigns msg.Seq, msg.ID and msg.CreatedAt.
	AppendMessage(ctx context.Context, msg *domain.TicketMessage) error
	// UpdateStatus writes next only if the stored status still equals
	// expected, otherwise ErrConcurrentModification. resolvedBy is recorded
	// when transitioning into RESOLVED and cleared otherwise.
	UpdateStatus(ctx context.Context, ticketID string, expected, next domain.TicketStatus, resolvedBy *domain.ResolvedBy) error
}

// TicketHistoryRepository stores immutable audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}
